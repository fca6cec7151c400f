package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/utils"
)

type PlanRepository interface {
	Create(ctx context.Context, p *models.PreparationPlan) error
	GetByPlanID(ctx context.Context, planID string) (*models.PreparationPlan, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.PreparationPlan, error)
	Delete(ctx context.Context, planID string) error
	SetStatus(ctx context.Context, planID string, status models.PlanStatus) error

	AppendLearning(ctx context.Context, planID string, topics []models.StudyTopic, questions []models.PreparedQuestion) error
	AppendPractice(ctx context.Context, planID string, problems []models.PracticeProblem) error
	SetTopicPinned(ctx context.Context, planID, topicID string, pinned bool) error
	SetQuestionRating(ctx context.Context, planID, questionID string, rating int) error

	AppendSession(ctx context.Context, planID string, s *models.MockInterviewSession) error
	GetSession(ctx context.Context, planID, sessionID string) (*models.MockInterviewSession, error)
	ReplaceTranscript(ctx context.Context, planID, sessionID string, transcript []models.TranscriptEntry) (matched bool, err error)
	ConcludeSession(ctx context.Context, planID, sessionID string, transcript []models.TranscriptEntry, feedback *models.FeedbackReport, durationSeconds int64) (matched bool, err error)
}

type planRepo struct {
	col *mongo.Collection
}

func NewPlanRepo(db *mongo.Database) PlanRepository {
	return &planRepo{col: db.Collection("plans")}
}

func (r *planRepo) Create(ctx context.Context, p *models.PreparationPlan) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *planRepo) GetByPlanID(ctx context.Context, planID string) (*models.PreparationPlan, error) {
	var p models.PreparationPlan
	err := r.col.FindOne(ctx, bson.M{"plan_id": planID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *planRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.PreparationPlan, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PreparationPlan
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the whole plan document; embedded sessions cascade with it.
func (r *planRepo) Delete(ctx context.Context, planID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"plan_id": planID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) SetStatus(ctx context.Context, planID string, status models.PlanStatus) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// AppendLearning only ever grows the arrays; existing items are never
// replaced.
func (r *planRepo) AppendLearning(ctx context.Context, planID string, topics []models.StudyTopic, questions []models.PreparedQuestion) error {
	push := bson.M{}
	if len(topics) > 0 {
		push["study_topics"] = bson.M{"$each": topics}
	}
	if len(questions) > 0 {
		push["prepared_questions"] = bson.M{"$each": questions}
	}
	if len(push) == 0 {
		return nil
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{
			"$push": push,
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) AppendPractice(ctx context.Context, planID string, problems []models.PracticeProblem) error {
	if len(problems) == 0 {
		return nil
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{
			"$push": bson.M{"practice_problems": bson.M{"$each": problems}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) SetTopicPinned(ctx context.Context, planID, topicID string, pinned bool) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{"$set": bson.M{
			"study_topics.$[t].pinned": pinned,
			"updated_at":               time.Now().UTC(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{"t.topic_id": topicID}},
		}),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) SetQuestionRating(ctx context.Context, planID, questionID string, rating int) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{"$set": bson.M{
			"prepared_questions.$[q].rating": rating,
			"updated_at":                     time.Now().UTC(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{"q.question_id": questionID}},
		}),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) AppendSession(ctx context.Context, planID string, s *models.MockInterviewSession) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"plan_id": planID},
		bson.M{
			"$push": bson.M{"sessions": s},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *planRepo) GetSession(ctx context.Context, planID, sessionID string) (*models.MockInterviewSession, error) {
	p, err := r.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	for i := range p.Sessions {
		if p.Sessions[i].SessionID == sessionID {
			return &p.Sessions[i], nil
		}
	}
	return nil, utils.ErrNotFound
}

// ReplaceTranscript swaps the stored transcript for one active session
// sub-document. arrayFilters targets exactly the matching element; sibling
// sessions and plan-level fields are untouched. matched is false when the
// session is unknown or already concluded.
func (r *planRepo) ReplaceTranscript(ctx context.Context, planID, sessionID string, transcript []models.TranscriptEntry) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"plan_id": planID,
			"sessions": bson.M{"$elemMatch": bson.M{
				"session_id": sessionID,
				"status":     models.SessionActive,
			}},
		},
		bson.M{"$set": bson.M{
			"sessions.$[s].transcript": transcript,
			"updated_at":               time.Now().UTC(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{
				"s.session_id": sessionID,
				"s.status":     models.SessionActive,
			}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// ConcludeSession seals one session. The array filter requires status
// "active", so a raced or repeated call matches nothing and reports
// matched=false instead of clobbering the stored result.
func (r *planRepo) ConcludeSession(ctx context.Context, planID, sessionID string, transcript []models.TranscriptEntry, feedback *models.FeedbackReport, durationSeconds int64) (bool, error) {
	set := bson.M{
		"sessions.$[s].status":           models.SessionConcluded,
		"sessions.$[s].transcript":       transcript,
		"sessions.$[s].feedback":         feedback,
		"sessions.$[s].duration_seconds": durationSeconds,
		"updated_at":                     time.Now().UTC(),
	}
	if feedback != nil {
		set["sessions.$[s].overall_score"] = feedback.OverallScore
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"plan_id": planID,
			"sessions": bson.M{"$elemMatch": bson.M{
				"session_id": sessionID,
				"status":     models.SessionActive,
			}},
		},
		bson.M{"$set": set},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{
				"s.session_id": sessionID,
				"s.status":     models.SessionActive,
			}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
