package services

import (
	"context"
	"errors"
	"fmt"

	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/metrics"
	"project-collab-backend/pkg/models"
)

// AccessSummary describes what the caller may do on a project.
type AccessSummary struct {
	HasAccess bool        `json:"has_access"`
	IsOwner   bool        `json:"is_owner"`
	Role      models.Role `json:"role,omitempty"`
}

// CheckIfUserHasAccess reports whether userID holds any membership on projectID.
func (s *Service) CheckIfUserHasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	_, err := s.db.GetMembership(ctx, userID, projectID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return true, nil
}

// CheckIfUserIsOwner reports whether userID is an owner of projectID.
func (s *Service) CheckIfUserIsOwner(ctx context.Context, userID, projectID string) (bool, error) {
	m, err := s.db.GetMembership(ctx, userID, projectID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check owner: %w", err)
	}
	return m.Role == models.RoleOwner, nil
}

// GetAccess 返回调用者在项目中的访问摘要
func (s *Service) GetAccess(ctx context.Context, userID, projectID string) (*AccessSummary, error) {
	m, err := s.db.GetMembership(ctx, userID, projectID)
	if errors.Is(err, database.ErrNotFound) {
		return &AccessSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get access: %w", err)
	}
	return &AccessSummary{
		HasAccess: true,
		IsOwner:   m.Role == models.RoleOwner,
		Role:      m.Role,
	}, nil
}

// GetUserMembership 返回调用者在项目中的成员记录
func (s *Service) GetUserMembership(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	m, err := s.db.GetMembership(ctx, userID, projectID)
	if err != nil {
		return nil, storeError("get membership", err)
	}
	return m, nil
}

// RequestProjectAccess files an access request for userID on projectID.
// A second request for the same pair returns the pending one.
func (s *Service) RequestProjectAccess(ctx context.Context, userID, projectID string) (*models.AccessRequest, error) {
	if _, err := s.db.GetProject(ctx, projectID); err != nil {
		return nil, storeError("get project", err)
	}

	isMember, err := s.CheckIfUserHasAccess(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, ErrAlreadyMember
	}

	existing, err := s.db.FindAccessRequest(ctx, userID, projectID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find access request: %w", err)
	}

	req := &models.AccessRequest{
		ID:        s.newID(),
		UserID:    userID,
		ProjectID: projectID,
		CreatedAt: s.timestamp(),
	}
	if err := s.db.CreateAccessRequest(ctx, req); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// 并发请求已写入
			return s.db.FindAccessRequest(ctx, userID, projectID)
		}
		return nil, fmt.Errorf("create access request: %w", err)
	}

	metrics.RecordAccessRequest("created")
	s.log(ctx, "request_access", userID, projectID).Info("access request created")
	return req, nil
}

// ListAccessRequests returns pending requests with requester records. Owner only.
func (s *Service) ListAccessRequests(ctx context.Context, callerID, projectID string) ([]models.PendingRequest, error) {
	if _, err := s.requireRole(ctx, "list_requests", callerID, projectID, models.RoleOwner); err != nil {
		return nil, err
	}

	reqs, err := s.db.ListAccessRequests(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.UserID
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	pending := make([]models.PendingRequest, len(reqs))
	for i, r := range reqs {
		pending[i] = models.PendingRequest{AccessRequest: r, User: users[r.UserID]}
	}
	return pending, nil
}

// RespondToRequest accepts or rejects an access request. Owner only.
// Accepting adds the requester as canView and returns the new membership.
func (s *Service) RespondToRequest(ctx context.Context, callerID, projectID string, response models.RequestResponse, requestID string) (*models.ProjectMembership, error) {
	if _, err := s.requireRole(ctx, "respond_request", callerID, projectID, models.RoleOwner); err != nil {
		return nil, err
	}
	if response != models.ResponseAccept && response != models.ResponseReject {
		return nil, ErrInvalidResponse
	}

	req, err := s.db.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, storeError("get access request", err)
	}
	if req.ProjectID != projectID {
		return nil, ErrNotFound
	}

	log := s.log(ctx, "respond_request", callerID, projectID).WithField("requester_id", req.UserID)

	if response == models.ResponseReject {
		if err := s.db.DeleteAccessRequest(ctx, req.ID); err != nil {
			return nil, storeError("delete access request", err)
		}
		metrics.RecordAccessRequest("rejected")
		log.Info("access request rejected")
		return nil, nil
	}

	now := s.timestamp()
	m := &models.ProjectMembership{
		ID:        s.newID(),
		UserID:    req.UserID,
		ProjectID: projectID,
		Role:      models.RoleCanView,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.AcceptAccessRequest(ctx, req.ID, m); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// 申请人已通过其他途径成为成员，清理过期请求
			if derr := s.db.DeleteAccessRequest(ctx, req.ID); derr != nil {
				log.WithError(derr).WithField("request_id", req.ID).Warn("failed to delete stale access request")
			}
			return nil, ErrAlreadyMember
		}
		return nil, storeError("accept access request", err)
	}
	metrics.RecordAccessRequest("accepted")
	log.Info("access request accepted")
	return m, nil
}

// memberOf loads a membership by id and checks it belongs to projectID.
func (s *Service) memberOf(ctx context.Context, accessID, projectID string) (*models.ProjectMembership, error) {
	m, err := s.db.GetMembershipByID(ctx, accessID)
	if err != nil {
		return nil, storeError("get membership", err)
	}
	if m.ProjectID != projectID {
		return nil, ErrNotFound
	}
	return m, nil
}

// UpdateRole changes the role of membership accessID. Owner only.
func (s *Service) UpdateRole(ctx context.Context, callerID, accessID string, role models.Role, projectID string) (*models.ProjectMembership, error) {
	if _, err := s.requireRole(ctx, "update_role", callerID, projectID, models.RoleOwner); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	target, err := s.memberOf(ctx, accessID, projectID)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}

	if err := s.db.UpdateMemberRole(ctx, accessID, role); err != nil {
		return nil, storeError("update role", err)
	}

	s.log(ctx, "update_role", callerID, projectID).WithFields(map[string]interface{}{
		"member_id": target.UserID,
		"from":      target.Role,
		"to":        role,
	}).Info("member role updated")

	target.Role = role
	target.UpdatedAt = s.timestamp()
	return target, nil
}

// RemoveUserFromProject deletes membership accessID. Owner only.
func (s *Service) RemoveUserFromProject(ctx context.Context, accessID, ownerID, projectID string) error {
	if _, err := s.requireRole(ctx, "remove_member", ownerID, projectID, models.RoleOwner); err != nil {
		return err
	}

	target, err := s.memberOf(ctx, accessID, projectID)
	if err != nil {
		return err
	}
	if err := s.db.RemoveProjectMember(ctx, target.ID); err != nil {
		return storeError("remove member", err)
	}

	s.log(ctx, "remove_member", ownerID, projectID).WithField("member_id", target.UserID).Info("member removed")
	return nil
}
