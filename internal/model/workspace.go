package model

import "time"

// WorkspacePermissions 权限快照，刷新时整体替换而不是原地修改
type WorkspacePermissions struct {
	Provider              string    `json:"provider"`
	AccessLevel           int       `json:"accessLevel"`
	AccessLevelName       string    `json:"accessLevelName"`
	CanPushToProtected    bool      `json:"canPushToProtected"`
	TargetBranchProtected bool      `json:"targetBranchProtected"`
	AuthenticatedUser     string    `json:"authenticatedUser"`
	CheckedAt             time.Time `json:"checkedAt"`
	Warning               string    `json:"warning,omitempty"`
}

// WorkspaceMetadata 工作区元数据
type WorkspaceMetadata struct {
	Size        int64                 `json:"size"`
	CommitHash  string                `json:"commitHash"`
	IsActive    bool                  `json:"isActive"`
	Tags        []string              `json:"tags,omitempty"`
	Permissions *WorkspacePermissions `json:"permissions,omitempty"`
}

// Workspace 工作区数据模型
// ID 在创建时分配且永不复用，Path 在工作区生命周期内独占
type Workspace struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	RepoURL      string            `json:"repoUrl"`
	TargetBranch string            `json:"targetBranch"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastAccessed time.Time         `json:"lastAccessed"`
	Metadata     WorkspaceMetadata `json:"metadata"`
}
