package api

import (
	"context"
	"fmt"

	"github.com/nhle/carpool-client/internal/model"
)

// Login exchanges credentials for a bearer token and the user's profile.
func (c *Client) Login(
	ctx context.Context,
	email string,
	password string,
) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.Post(ctx, "/usuario/login", "", model.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return &resp, nil
}

// ListNotifications performs the bulk fetch of the user's notifications.
func (c *Client) ListNotifications(
	ctx context.Context,
	token string,
) ([]model.Notification, error) {
	var list []model.Notification
	if err := c.Get(ctx, "/notifications", token, &list); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(
	ctx context.Context,
	token string,
	id int64,
) error {
	path := fmt.Sprintf("/notifications/%d/read", id)
	if err := c.Patch(ctx, path, token, struct{}{}, nil); err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification of the user as read.
func (c *Client) MarkAllNotificationsRead(
	ctx context.Context,
	token string,
) error {
	if err := c.Patch(ctx, "/notifications/read-all", token, struct{}{}, nil); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}
