// Package activity appends rows to the user activity log.
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/models"
)

const (
	ActionRegister             = "user_registered"
	ActionLogin                = "user_login"
	ActionLogout               = "user_logout"
	ActionPasswordChanged      = "password_changed"
	ActionProfileUpdated       = "profile_updated"
	ActionSkillEnrolled        = "skill_enrolled"
	ActionExamCreated          = "exam_created"
	ActionExamStarted          = "exam_started"
	ActionExamSubmitted        = "exam_submitted"
	ActionCertificateGenerated = "certificate_generated"
	ActionCertificateRevoked   = "certificate_revoked"
)

type Entry struct {
	UserID     uint
	Action     string
	EntityType string
	EntityID   uint
	Metadata   map[string]any
}

type clientKey struct{}

// Client identifies the caller of a request for audit purposes.
type Client struct {
	IP        string
	UserAgent string
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFrom(ctx context.Context) Client {
	if ctx == nil {
		return Client{}
	}
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// Record inserts e through tx, so it commits or rolls back with the
// surrounding use case. Caller details come from the statement context.
func Record(tx *gorm.DB, e Entry) error {
	var meta datatypes.JSON
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	client := ClientFrom(tx.Statement.Context)
	row := models.ActivityLog{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   meta,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("record activity %s: %w", e.Action, err)
	}
	return nil
}
