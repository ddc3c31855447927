package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/require"
)

// RequestBuilder provides a fluent interface for creating test requests
type RequestBuilder struct {
	title       string
	description string
	status      rbac.Status
	requesterID string
	store       workflow.Store
	t           *testing.T
}

// NewRequest creates a new request builder against any store
func NewRequest(t *testing.T, store workflow.Store) *RequestBuilder {
	return &RequestBuilder{
		title:       "Test Request",
		description: "Test request description",
		status:      rbac.StatusSubmitted,
		requesterID: "requester-" + uuid.NewString()[:8],
		store:       store,
		t:           t,
	}
}

func (rb *RequestBuilder) WithTitle(title string) *RequestBuilder {
	rb.title = title
	return rb
}

// WithStatus sets the initial status, skipping the transition log
func (rb *RequestBuilder) WithStatus(status rbac.Status) *RequestBuilder {
	rb.status = status
	return rb
}

func (rb *RequestBuilder) WithRequester(id string) *RequestBuilder {
	rb.requesterID = id
	return rb
}

// Create stores the request and returns it
func (rb *RequestBuilder) Create() *workflow.Request {
	r := &workflow.Request{
		Title:       rb.title,
		Description: rb.description,
		Status:      rb.status,
		RequesterID: rb.requesterID,
	}
	require.NoError(rb.t, rb.store.CreateRequest(context.Background(), r), "Failed to create request")
	return r
}

// UserBuilder provides a fluent interface for creating test users
type UserBuilder struct {
	user   database.User
	testDB *TestDatabase
	t      *testing.T
}

// NewUser creates a new user builder
func (tdb *TestDatabase) NewUser(t *testing.T) *UserBuilder {
	return &UserBuilder{
		user: database.User{
			ID:    uuid.NewString(),
			Email: "test-" + uuid.NewString()[:8] + "@example.com",
			Name:  "Test User",
			Role:  string(rbac.RoleUser),
		},
		testDB: tdb,
		t:      t,
	}
}

func (ub *UserBuilder) WithEmail(email string) *UserBuilder {
	ub.user.Email = email
	return ub
}

func (ub *UserBuilder) WithRole(role rbac.Role) *UserBuilder {
	ub.user.Role = string(role)
	return ub
}

// Create creates the user in the database
func (ub *UserBuilder) Create() database.User {
	err := database.NewUserDirectory(ub.testDB.Database).Upsert(context.Background(), ub.user)
	require.NoError(ub.t, err, "Failed to create user")
	return ub.user
}
