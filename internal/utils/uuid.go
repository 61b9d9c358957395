package utils

import (
	"github.com/google/uuid"
)

// GenerateUUID 生成一个新的 UUID v7
func GenerateUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsValidUUID 检查字符串是否是有效的 UUID
func IsValidUUID(uuidStr string) bool {
	_, err := uuid.Parse(uuidStr)
	return err == nil
}
