// Package qualification scores a visitor's yes/no answers against a funnel's question set.
package qualification

import (
	"fmt"
	"sort"
)

// Accepted answer values.
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// ErrorKind distinguishes the three ways an answer map can be rejected.
type ErrorKind string

const (
	ErrUnknownQuestion ErrorKind = "unknown_question"
	ErrInvalidAnswer   ErrorKind = "invalid_answer"
	ErrIncomplete      ErrorKind = "incomplete_answers"
)

// Question is the part of a qualification question the engine needs.
type Question struct {
	ID               string
	QualifyingAnswer string
}

// ValidationError names the rejected question and why.
type ValidationError struct {
	Kind       ErrorKind
	QuestionID string
	Value      string
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case ErrUnknownQuestion:
		return fmt.Sprintf("unknown question id %q", e.QuestionID)
	case ErrInvalidAnswer:
		return fmt.Sprintf("answer for question %q must be \"yes\" or \"no\"", e.QuestionID)
	case ErrIncomplete:
		return fmt.Sprintf("missing answer for question %q", e.QuestionID)
	default:
		return "invalid answers"
	}
}

// Result is the outcome of Score. Errors holds at most one entry; when it is
// non-empty Qualified is false and must not be persisted.
type Result struct {
	Qualified bool
	Errors    []ValidationError
}

// Valid reports whether the answers passed validation.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Score validates answers and computes the verdict.
//
// Checks run in a fixed order and stop at the first failure: every answer key
// must name a question, every value must be "yes" or "no", every question must
// be answered. Keys are examined in sorted order so the reported error is the
// same on every call. An empty question set qualifies without any checks.
func Score(questions []Question, answers map[string]string) Result {
	if len(questions) == 0 {
		return Result{Qualified: true}
	}

	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := byID[k]; !ok {
			return reject(ValidationError{Kind: ErrUnknownQuestion, QuestionID: k})
		}
	}

	for _, k := range keys {
		if v := answers[k]; v != AnswerYes && v != AnswerNo {
			return reject(ValidationError{Kind: ErrInvalidAnswer, QuestionID: k, Value: v})
		}
	}

	ordered := append([]Question(nil), questions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, q := range ordered {
		if _, ok := answers[q.ID]; !ok {
			return reject(ValidationError{Kind: ErrIncomplete, QuestionID: q.ID})
		}
	}

	qualified := true
	for _, q := range ordered {
		if answers[q.ID] != q.QualifyingAnswer {
			qualified = false
		}
	}
	return Result{Qualified: qualified}
}

func reject(err ValidationError) Result {
	return Result{Qualified: false, Errors: []ValidationError{err}}
}
