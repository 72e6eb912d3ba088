package service

import (
	"context"
	"log/slog"
	"strconv"

	"askbox/internal/events"
	"askbox/internal/middleware"
	"askbox/internal/models"
	"askbox/internal/observability"
	"askbox/internal/repository"
	"askbox/internal/validation"
)

type QuestionService struct {
	questionRepo repository.QuestionRepository
	profileRepo  repository.ProfileRepository
	publisher    events.Publisher
}

type CreateQuestionInput struct {
	Content     string
	Anonymous   bool
	FromID      string
	RecipientID string
}

// ListQuestionsInput pages through one profile's inbox or sent questions.
type ListQuestionsInput struct {
	ProfileID string
	Limit     int
	Offset    int
	Viewer    *models.User
}

func NewQuestionService(
	questionRepo repository.QuestionRepository,
	profileRepo repository.ProfileRepository,
	publisher events.Publisher,
) *QuestionService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &QuestionService{
		questionRepo: questionRepo,
		profileRepo:  profileRepo,
		publisher:    publisher,
	}
}

// VisibleQuestion hides the asker of an anonymous question from anyone who
// does not manage the asking profile.
func VisibleQuestion(q models.Question, viewer *models.User) models.Question {
	if q.Anonymous && !viewer.ManagesProfile(q.FromID) {
		q.FromID = ""
	}
	return q
}

func (s *QuestionService) Create(ctx context.Context, in CreateQuestionInput) (*models.Question, error) {
	if err := validation.ValidateQuestionContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := checkProfileID(in.FromID); err != nil {
		return nil, err
	}
	if err := checkProfileID(in.RecipientID); err != nil {
		return nil, err
	}
	if in.FromID == in.RecipientID {
		return nil, models.NewValidationError("A profile cannot ask itself a question")
	}
	for _, id := range []string{in.FromID, in.RecipientID} {
		ok, err := s.profileRepo.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewNotFoundError("Profile", id)
		}
	}

	q := &models.Question{
		Content:     in.Content,
		Anonymous:   in.Anonymous,
		FromID:      in.FromID,
		RecipientID: in.RecipientID,
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	observability.QuestionsAsked.WithLabelValues(strconv.FormatBool(q.Anonymous)).Inc()
	middleware.Logger.InfoContext(ctx, "Question created",
		slog.Uint64("question_id", uint64(q.ID)),
		slog.String("recipient_id", q.RecipientID),
		slog.Bool("anonymous", q.Anonymous))

	e := events.Event{
		Type:      events.TypeQuestionReceived,
		ProfileID: q.RecipientID,
		Payload:   map[string]any{"question_id": q.ID},
	}
	if !q.Anonymous {
		e.ActorID = q.FromID
	}
	events.Emit(ctx, s.publisher, e)
	return q, nil
}

// Get returns the question as viewer may see it.
func (s *QuestionService) Get(ctx context.Context, id uint, viewer *models.User) (*models.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible := VisibleQuestion(*q, viewer)
	return &visible, nil
}

// ListReceived returns questions addressed to in.ProfileID, newest first.
func (s *QuestionService) ListReceived(ctx context.Context, in ListQuestionsInput) ([]models.Question, error) {
	return s.list(ctx, in, s.questionRepo.ListByRecipient)
}

// ListAsked returns questions in.ProfileID asked, newest first.
func (s *QuestionService) ListAsked(ctx context.Context, in ListQuestionsInput) ([]models.Question, error) {
	return s.list(ctx, in, s.questionRepo.ListByAsker)
}

func (s *QuestionService) list(
	ctx context.Context,
	in ListQuestionsInput,
	fetch func(context.Context, string, int, int) ([]models.Question, error),
) ([]models.Question, error) {
	if err := checkProfileID(in.ProfileID); err != nil {
		return nil, err
	}
	ok, err := s.profileRepo.Exists(ctx, in.ProfileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Profile", in.ProfileID)
	}
	questions, err := fetch(ctx, in.ProfileID, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i] = VisibleQuestion(questions[i], in.Viewer)
	}
	return questions, nil
}

func (s *QuestionService) Delete(ctx context.Context, id uint) (*models.Question, error) {
	return s.questionRepo.Delete(ctx, id)
}
