package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoryRepository defines the interface for story operations
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetActiveStories(ctx context.Context) ([]models.Story, error)
	DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error)
	StoryViewRepository
}

// StoryViewRepository tracks who has seen which story. Views live in PostgreSQL.
type StoryViewRepository interface {
	MarkViewed(ctx context.Context, storyID, viewerID string) error
	GetViewedStoryIDs(ctx context.Context, viewerID string, storyIDs []string) (map[string]bool, error)
	ListViewers(ctx context.Context, storyID string) ([]models.StoryView, error)
	DeleteViews(ctx context.Context, storyIDs []string) error
}

type storyRepository struct {
	mongoCollection *mongo.Collection
	*postgresStoryViewRepository
}

func NewStoryRepository(mongoDB *mongo.Database, pgDB *gorm.DB) StoryRepository {
	return &storyRepository{
		mongoCollection:             mongoDB.Collection("stories"),
		postgresStoryViewRepository: &postgresStoryViewRepository{db: pgDB},
	}
}

func (r *storyRepository) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	story.CreatedAt = time.Now()
	story.ExpiresAt = story.CreatedAt.Add(models.StoryLifetime)
	_, err := r.mongoCollection.InsertOne(ctx, story)
	return err
}

func (r *storyRepository) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid story ID format: %w", ErrNotFound)
	}
	var story models.Story
	err = r.mongoCollection.FindOne(ctx, bson.M{"_id": objID}).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *storyRepository) GetActiveStories(ctx context.Context) ([]models.Story, error) {
	filter := bson.M{"expires_at": bson.M{"$gt": time.Now()}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.mongoCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stories []models.Story
	if err = cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// DeleteExpiredStories removes stories past their lifetime together with their view rows.
func (r *storyRepository) DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{"expires_at": bson.M{"$lte": now}}
	cursor, err := r.mongoCollection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var expired []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &expired); err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, len(expired))
	for i, s := range expired {
		ids[i] = s.ID.Hex()
	}
	res, err := r.mongoCollection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := r.DeleteViews(ctx, ids); err != nil {
		return res.DeletedCount, err
	}
	return res.DeletedCount, nil
}

type postgresStoryViewRepository struct {
	db *gorm.DB
}

// NewPostgresStoryViewRepository exposes the view tracking half on its own.
func NewPostgresStoryViewRepository(db *gorm.DB) StoryViewRepository {
	return &postgresStoryViewRepository{db: db}
}

// MarkViewed records a view once; repeated views are ignored.
func (r *postgresStoryViewRepository) MarkViewed(ctx context.Context, storyID, viewerID string) error {
	view := &models.StoryView{StoryID: storyID, ViewerID: viewerID, ViewedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(view).Error
}

func (r *postgresStoryViewRepository) GetViewedStoryIDs(ctx context.Context, viewerID string, storyIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(storyIDs) == 0 {
		return result, nil
	}
	var views []models.StoryView
	err := r.db.WithContext(ctx).Where("viewer_id = ? AND story_id IN ?", viewerID, storyIDs).Find(&views).Error
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		result[v.StoryID] = true
	}
	return result, nil
}

func (r *postgresStoryViewRepository) ListViewers(ctx context.Context, storyID string) ([]models.StoryView, error) {
	var views []models.StoryView
	err := r.db.WithContext(ctx).Where("story_id = ?", storyID).Order("viewed_at DESC").Find(&views).Error
	return views, err
}

func (r *postgresStoryViewRepository) DeleteViews(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&models.StoryView{}).Error
}
