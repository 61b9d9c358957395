package gitcmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	t.Run("干净工作区", func(t *testing.T) {
		result := ParseStatus("")
		assert.True(t, result.Clean)
		assert.Empty(t, result.Staged)
		assert.Empty(t, result.Modified)
		assert.Empty(t, result.Untracked)
	})

	t.Run("混合状态", func(t *testing.T) {
		out := "M  staged.go\n" +
			" M modified.go\n" +
			"MM both.go\n" +
			"?? untracked.go"
		result := ParseStatus(out)

		assert.False(t, result.Clean)
		assert.Equal(t, []string{"staged.go", "both.go"}, result.Staged)
		assert.Equal(t, []string{"modified.go", "both.go"}, result.Modified)
		assert.Equal(t, []string{"untracked.go"}, result.Untracked)
	})

	t.Run("新增和删除", func(t *testing.T) {
		out := "A  added.go\n" +
			"D  deleted.go"
		result := ParseStatus(out)
		assert.Equal(t, []string{"added.go", "deleted.go"}, result.Staged)
		assert.Empty(t, result.Modified)
	})
}

func TestCleanBranchList(t *testing.T) {
	t.Run("剥除远程前缀并去重", func(t *testing.T) {
		out := "origin/main\norigin/develop\nmain\n"
		branches := CleanBranchList(out, "")
		assert.Equal(t, []string{"develop", "main"}, branches)
	})

	t.Run("目标分支排最前", func(t *testing.T) {
		out := "alpha\ndevelop\nmain\nzeta\n"
		branches := CleanBranchList(out, "main")
		assert.Equal(t, []string{"main", "alpha", "develop", "zeta"}, branches)
	})

	t.Run("目标分支不存在时保持字典序", func(t *testing.T) {
		out := "beta\nalpha\n"
		branches := CleanBranchList(out, "main")
		assert.Equal(t, []string{"alpha", "beta"}, branches)
	})

	t.Run("过滤HEAD指针行", func(t *testing.T) {
		out := "origin/HEAD -> origin/main\norigin/main\n"
		branches := CleanBranchList(out, "")
		assert.Equal(t, []string{"main"}, branches)
	})
}

func TestParseLsRemoteCommit(t *testing.T) {
	t.Run("常规输出", func(t *testing.T) {
		out := "4a1b2c3d4e5f\trefs/heads/main"
		assert.Equal(t, "4a1b2c3d4e5f", parseLsRemoteCommit(out))
	})

	t.Run("空输出表示分支不存在", func(t *testing.T) {
		assert.Equal(t, "", parseLsRemoteCommit(""))
		assert.Equal(t, "", parseLsRemoteCommit("  \n"))
	})

	t.Run("多行取第一行", func(t *testing.T) {
		out := "aaa\trefs/heads/main\nbbb\trefs/heads/main2"
		assert.Equal(t, "aaa", parseLsRemoteCommit(out))
	})
}

func TestIsOwnershipError(t *testing.T) {
	assert.True(t, isOwnershipError(errors.New("fatal: detected dubious ownership in repository at '/srv/repo'")))
	assert.False(t, isOwnershipError(errors.New("fatal: not a git repository")))
	assert.False(t, isOwnershipError(nil))
}

func TestDetachedHeadSentinel(t *testing.T) {
	require.Error(t, ErrDetachedHead)
	assert.True(t, errors.Is(ErrDetachedHead, ErrDetachedHead))
}
