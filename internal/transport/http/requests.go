package http

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"contest-service/internal/domain"
)

var validate = validator.New()

type createContestRequest struct {
	PlatformID  int64             `json:"platform_id" validate:"required,gt=0"`
	Title       string            `json:"title" validate:"required,max=255"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	StartDate   time.Time         `json:"start_date" validate:"required"`
	EndDate     time.Time         `json:"end_date" validate:"required"`
	MaxAttempts int               `json:"max_attempts" validate:"required,min=1,max=10"`
	Terms       []string          `json:"terms" validate:"omitempty,dive,required,max=500"`
	Questions   []questionRequest `json:"questions" validate:"required,min=1,dive"`
}

type questionRequest struct {
	Text          string `json:"question_text" validate:"required"`
	Option1       string `json:"option_1" validate:"required,max=255"`
	Option2       string `json:"option_2" validate:"required,max=255"`
	Option3       string `json:"option_3" validate:"required,max=255"`
	CorrectAnswer string `json:"correct_answer" validate:"required,oneof=1 2 3"`
}

func (r createContestRequest) draft() domain.ContestDraft {
	questions := make([]domain.QuestionDraft, 0, len(r.Questions))
	for _, q := range r.Questions {
		questions = append(questions, domain.QuestionDraft{
			Text:          q.Text,
			Option1:       q.Option1,
			Option2:       q.Option2,
			Option3:       q.Option3,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return domain.ContestDraft{
		PlatformID:  r.PlatformID,
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		MaxAttempts: r.MaxAttempts,
		Questions:   questions,
		Terms:       r.Terms,
	}
}

type submitRequest struct {
	Answers []answerRequest `json:"answers" validate:"required,min=1,dive"`
}

type answerRequest struct {
	QuestionID     int64  `json:"question_id" validate:"required,gt=0"`
	SelectedAnswer string `json:"selected_answer" validate:"required,oneof=1 2 3"`
}

func (r submitRequest) submissions() []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, 0, len(r.Answers))
	for _, a := range r.Answers {
		out = append(out, domain.AnswerSubmission{
			QuestionID:     a.QuestionID,
			SelectedAnswer: a.SelectedAnswer,
		})
	}
	return out
}

// fieldErrors flattens validator output into the API's field error shape.
func fieldErrors(err error) []domain.FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []domain.FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		// strip the struct name prefix from the namespace
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, domain.FieldError{
			Field:   strings.ToLower(field),
			Message: "failed on rule " + fe.Tag(),
		})
	}
	return out
}
