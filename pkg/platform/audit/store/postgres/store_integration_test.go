//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vektorkite/pkg/domain"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/platform/audit/store/postgres"
	"vektorkite/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresAuditSuite) TestAppendAndListByUser() {
	ctx := context.Background()
	userID := id.NewUserID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        uuid.NewString(),
		Timestamp: base,
		UserID:    userID,
		Action:    string(audit.EventRegistrationSubmitted),
		Subject:   "jo***@example.com",
		ClientIP:  "203.0.113.0",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        uuid.NewString(),
		Timestamp: base.Add(time.Second),
		UserID:    userID,
		Action:    string(audit.EventEmailVerified),
	}))

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventEmailVerified), events[0].Action)
	s.Equal(audit.CategoryCompliance, events[1].Category)
	s.Equal("jo***@example.com", events[1].Subject)
	s.Equal(userID, events[1].UserID)
}

func (s *PostgresAuditSuite) TestAppendIsIdempotentOnID() {
	ctx := context.Background()
	event := audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    string(audit.EventRateLimitExceeded),
	}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Len(events, 1)
	s.True(events[0].UserID.IsNil())
	s.Equal(audit.CategorySecurity, events[0].Category)
}

func (s *PostgresAuditSuite) TestListRecentHonoursLimit() {
	ctx := context.Background()
	base := time.Now()
	for i := range 5 {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			ID:        uuid.NewString(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Action:    string(audit.EventRegistrationFailed),
		}))
	}

	events, err := s.store.ListRecent(ctx, 3)
	s.Require().NoError(err)
	s.Len(events, 3)
	s.True(events[0].Timestamp.After(events[2].Timestamp))
}
