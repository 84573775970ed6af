package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// StringList stores a list of strings as JSON so the schema works on both
// PostgreSQL and SQLite.
type StringList []string

// Scan implements sql.Scanner for reading from database
func (sl *StringList) Scan(value any) error {
	if value == nil {
		*sl = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringList: expected []byte or string, got %T", value)
	}
	return json.Unmarshal(bytes, sl)
}

// Value implements driver.Valuer for writing to database
func (sl StringList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(sl)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// User represents a human principal in the identity store.
//
// SessionEpoch is a strictly monotonic counter snapshotted into every bearer
// token at issuance; a token is only valid while its embedded epoch equals
// the live value. Logout increments the epoch, invalidating every token
// ever issued for the user in O(1).
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk,type:uuid"`
	Username     string     `bun:"username,notnull,unique"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"` // bcrypt hash
	SessionEpoch int64      `bun:"session_epoch,notnull,default:0"`
	PermissionID *string    `bun:"permission_id,type:uuid,unique"` // FK to permissions(id), nullable
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// Active reports whether the user may authenticate.
func (u *User) Active() bool {
	return u != nil && u.DisabledAt == nil
}

// Permission is the capability record owned by exactly one user.
// A user without a permission row has no elevated capability; both flags
// read as false in that case.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID                 string    `bun:"id,pk,type:uuid"`
	AdminUser          bool      `bun:"admin_user,notnull,default:false"`
	CreateApplications bool      `bun:"create_applications,notnull,default:false"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RevokedToken is the refresh-token denylist, keyed by the jti claim.
// Rows become garbage once exp passes; cleanup is a periodic delete, not
// part of the verification path.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk"`
	UserID    string    `bun:"user_id,notnull,type:uuid"`
	Exp       time.Time `bun:"exp,notnull"`
	RevokedAt time.Time `bun:"revoked_at,notnull,default:current_timestamp"`
}

// Application is a registered OAuth2 client.
type Application struct {
	bun.BaseModel `bun:"table:applications,alias:app"`

	ID               string     `bun:"id,pk,type:uuid"`
	ClientID         string     `bun:"client_id,notnull,unique"`
	ClientSecretHash string     `bun:"client_secret_hash,notnull"` // bcrypt hash
	Name             string     `bun:"name,notnull"`
	RedirectURIs     StringList `bun:"redirect_uris,type:jsonb,notnull,default:'[]'"`
	CreatedBy        string     `bun:"created_by,notnull,type:uuid"` // FK to users(id)
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	Disabled         bool       `bun:"disabled,notnull,default:false"`
}

// OAuthToken records an access token issued by the OAuth2 provider so the
// userinfo and introspection endpoints can recover the granted scopes and
// enforce revocation. Keyed by a hash of the token's jti claim.
type OAuthToken struct {
	bun.BaseModel `bun:"table:oauth_tokens,alias:ot"`

	ID        string     `bun:"id,pk,type:uuid"`
	JTIHash   string     `bun:"jti_hash,notnull,unique"` // SHA256 hex of the jti claim
	UserID    string     `bun:"user_id,notnull,type:uuid"`
	ClientID  string     `bun:"client_id,notnull"`
	Scopes    StringList `bun:"scopes,type:jsonb,notnull,default:'[]'"`
	ExpiresAt time.Time  `bun:"expires_at,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	Revoked   bool       `bun:"revoked,notnull,default:false"`
}
