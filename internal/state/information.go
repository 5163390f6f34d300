// Package state holds the record shared by every node of a pipeline run.
package state

import (
	"slices"

	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/llm"
)

// Information is both the shared state of a run and the partial update a
// node returns. In an update, zero-valued fields mean "no change".
type Information struct {
	Messages          []llm.Message
	Preferences       []domain.Preference
	OriginalBook      *domain.Book
	ModifiedBook      *domain.Book
	IntermediateBooks []*domain.Book
	Evaluations       []domain.Evaluation
	QuestionsBooks    []*domain.Book
	Query             string
	EditionRounds     int
}

// Merge applies update with the per-field reducers: transcripts, candidate
// books and evaluations accumulate; the rest keep the newest non-empty
// value; the edition counter only grows.
func (s Information) Merge(update Information) Information {
	out := s.Clone()

	out.Messages = append(out.Messages, update.Messages...)
	out.IntermediateBooks = append(out.IntermediateBooks, update.IntermediateBooks...)
	out.Evaluations = append(out.Evaluations, update.Evaluations...)
	out.QuestionsBooks = append(out.QuestionsBooks, update.QuestionsBooks...)

	if len(update.Preferences) > 0 {
		out.Preferences = slices.Clone(update.Preferences)
	}
	if update.OriginalBook != nil {
		out.OriginalBook = update.OriginalBook
	}
	if update.ModifiedBook != nil {
		out.ModifiedBook = update.ModifiedBook
	}
	if update.Query != "" {
		out.Query = update.Query
	}
	out.EditionRounds = max(out.EditionRounds, update.EditionRounds)

	return out
}

// Clone copies every slice. Books are shared: nodes never mutate a book,
// they publish new ones.
func (s Information) Clone() Information {
	s.Messages = slices.Clone(s.Messages)
	s.Preferences = slices.Clone(s.Preferences)
	s.IntermediateBooks = slices.Clone(s.IntermediateBooks)
	s.Evaluations = slices.Clone(s.Evaluations)
	s.QuestionsBooks = slices.Clone(s.QuestionsBooks)
	return s
}

// LastEvaluation returns the most recent evaluation, if any.
func (s Information) LastEvaluation() (domain.Evaluation, bool) {
	if len(s.Evaluations) == 0 {
		return domain.Evaluation{}, false
	}
	return s.Evaluations[len(s.Evaluations)-1], true
}

// LastMessage returns the most recent transcript entry, if any.
func (s Information) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// CurrentBook is the newest version of the story: the modified book when
// one exists, else the original.
func (s Information) CurrentBook() *domain.Book {
	if s.ModifiedBook != nil {
		return s.ModifiedBook
	}
	return s.OriginalBook
}
