package services

import (
	"errors"
	"fmt"

	"project-collab-backend/pkg/database"
)

var (
	// ErrForbidden is returned for every failed authorization check.
	ErrForbidden = errors.New("you do not have permission to perform this action")
	// ErrNotFound 目标记录不存在或不属于该项目
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyMember 用户已是项目成员
	ErrAlreadyMember = errors.New("user is already a member of this project")
	// ErrInvalidResponse 访问请求回复只能是 accept 或 reject
	ErrInvalidResponse = errors.New("response must be accept or reject")
	// ErrInvalidRole 未知角色
	ErrInvalidRole = errors.New("role must be one of owner, canEdit, canView")
	// ErrLastOwner 项目至少保留一个 owner
	ErrLastOwner = errors.New("project must keep at least one owner")
	// ErrInvalidInput 输入不合法
	ErrInvalidInput = errors.New("invalid input")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeError translates storage sentinels into service errors.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, database.ErrLastOwner):
		return ErrLastOwner
	case errors.Is(err, database.ErrDuplicate):
		return ErrAlreadyMember
	}
	return fmt.Errorf("%s: %w", op, err)
}
