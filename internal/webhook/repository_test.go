package webhook_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shacrom/mmorpg-news/internal/db"
	"github.com/shacrom/mmorpg-news/internal/webhook"
)

type DeliveryRepositorySuite struct {
	suite.Suite

	ctx    context.Context
	client *mongo.Client
	db     *mongo.Database
	col    *mongo.Collection

	repo webhook.Repository
}

func TestDeliveryRepositorySuite(t *testing.T) {
	suite.Run(t, new(DeliveryRepositorySuite))
}

func (s *DeliveryRepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	client, err := db.ConnectMongo(s.ctx, "mongodb://localhost:27017", 2*time.Second)
	if err != nil {
		s.T().Skipf("mongo not reachable: %v", err)
	}
	s.client = client
	s.db = client.Database("test_newssite")
	s.col = s.db.Collection("webhook_deliveries")
}

func (s *DeliveryRepositorySuite) TearDownSuite() {
	if s.client != nil {
		_ = s.db.Drop(s.ctx)
		_ = s.client.Disconnect(s.ctx)
	}
}

func (s *DeliveryRepositorySuite) SetupTest() {
	// fresh collection and indexes for every test
	_ = s.db.Drop(s.ctx)

	repo, err := webhook.NewMongoRepository(s.db, nil)
	s.Require().NoError(err, "failed to create delivery repository")
	s.repo = repo
}

func (s *DeliveryRepositorySuite) TestRecordDeduplicatesByEntryRevision() {
	first := &webhook.Delivery{Event: "entry.publish", Model: "news", EntryID: 7, Slug: "a", EntryUpdatedAt: "2024-03-05T10:00:00.000Z"}

	created, err := s.repo.Record(s.ctx, first)
	s.Require().NoError(err)
	s.True(created, "first delivery is new")
	s.False(first.ID.IsZero())
	s.False(first.ReceivedAt.IsZero())

	resend := &webhook.Delivery{Event: "entry.publish", Model: "news", EntryID: 7, Slug: "a", EntryUpdatedAt: "2024-03-05T10:00:00.000Z"}
	created, err = s.repo.Record(s.ctx, resend)
	s.Require().NoError(err)
	s.False(created, "same revision is a duplicate")

	revision := &webhook.Delivery{Event: "entry.publish", Model: "news", EntryID: 7, Slug: "a", EntryUpdatedAt: "2024-03-05T11:00:00.000Z"}
	created, err = s.repo.Record(s.ctx, revision)
	s.Require().NoError(err)
	s.True(created, "newer revision is recorded")

	count, err := s.col.CountDocuments(s.ctx, bson.M{"entryId": 7})
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}

func (s *DeliveryRepositorySuite) TestForgetAllowsResend() {
	d := &webhook.Delivery{Event: "entry.update", Model: "news", EntryID: 9, EntryUpdatedAt: "2024-03-05T10:00:00.000Z"}

	created, err := s.repo.Record(s.ctx, d)
	s.Require().NoError(err)
	s.Require().True(created)

	s.Require().NoError(s.repo.Forget(s.ctx, d))

	created, err = s.repo.Record(s.ctx, &webhook.Delivery{Event: "entry.update", Model: "news", EntryID: 9, EntryUpdatedAt: "2024-03-05T10:00:00.000Z"})
	s.Require().NoError(err)
	s.True(created)
}
