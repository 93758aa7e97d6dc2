package catalog

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
)

// Postgres loads games and their question lists from the game catalog
// database. Question and option order is the authored order.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (c *Postgres) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	const gameStmt = `SELECT game_id, name FROM games WHERE game_id = $1;`

	var game domain.Game
	err := c.db.QueryRow(ctx, gameStmt, gameID).Scan(&game.GameID, &game.Name)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("game %s not found", gameID))
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("catalog: query game: %w", err)
	}

	game.Questions, err = c.listQuestions(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}

	return game, nil
}

func (c *Postgres) listQuestions(ctx context.Context, gameID string) ([]domain.Question, error) {
	const questionStmt = `
SELECT question_id, title, description, question_type, time_limit
FROM questions
WHERE game_id = $1
ORDER BY position;`

	rows, err := c.db.Query(ctx, questionStmt, gameID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query questions: %w", err)
	}

	questions, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var q domain.Question
		if err := r.Scan(&q.QuestionID, &q.Title, &q.Description, &q.Type, &q.TimeLimit); err != nil {
			return domain.Question{}, err
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: collect questions: %w", err)
	}

	for i := range questions {
		questions[i].Options, err = c.listOptions(ctx, questions[i].QuestionID)
		if err != nil {
			return nil, err
		}
	}

	return questions, nil
}

func (c *Postgres) listOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	const optionStmt = `
SELECT option_text, is_correct
FROM question_options
WHERE question_id = $1
ORDER BY position;`

	rows, err := c.db.Query(ctx, optionStmt, questionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query options: %w", err)
	}

	opts, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Option, error) {
		var o domain.Option
		if err := r.Scan(&o.Text, &o.Correct); err != nil {
			return domain.Option{}, err
		}
		return o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: collect options: %w", err)
	}

	return opts, nil
}
