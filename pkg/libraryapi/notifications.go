package libraryapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/me/libra/pkg/model"
)

// ListNotifications returns the member's notifications, newest first as
// ordered by the backend.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	const op = "list notifications"
	data, err := c.doRaw(ctx, request{op: op, method: http.MethodGet, path: "notifications/"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Notification](op, data)
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		op:     "mark notification read",
		method: http.MethodPost,
		path:   fmt.Sprintf("notifications/%d/mark_read/", id),
	}, nil)
}

// ClearNotifications deletes all of the member's notifications.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, request{op: "clear notifications", method: http.MethodDelete, path: "notifications/clear_all/"}, nil)
}
