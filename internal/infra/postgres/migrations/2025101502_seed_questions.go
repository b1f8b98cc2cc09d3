package migrations

import (
	"context"
	"encoding/json"

	"quiz-battle-service/internal/arena"
	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID   string          `bun:"id,pk"`
	Data json.RawMessage `bun:"data,type:jsonb"`
}

// Seeds the built-in pool so a fresh database serves the same questions as the in-memory default.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			defaults := arena.DefaultQuestions()
			rows := make([]questionRow, 0, len(defaults))
			for _, q := range defaults {
				data, err := json.Marshal(q)
				if err != nil {
					return err
				}
				rows = append(rows, questionRow{ID: q.ID, Data: data})
			}
			_, err := db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			ids := make([]string, 0, 4)
			for _, q := range arena.DefaultQuestions() {
				ids = append(ids, q.ID)
			}
			_, err := db.NewDelete().Model((*questionRow)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
			return err
		},
	)
}
