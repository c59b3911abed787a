package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironsession/internal/models"
	"github.com/jackc/pgx/v5"
)

// PutPrescription replaces the exercise list for (user, workout) atomically.
func (db *DB) PutPrescription(ctx context.Context, p models.Prescription) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM prescriptions WHERE user_id = $1 AND workout_name = $2`,
			p.UserID, p.WorkoutName); err != nil {
			return fmt.Errorf("clearing prescription: %w", err)
		}

		batch := &pgx.Batch{}
		for i, ex := range p.Exercises {
			batch.Queue(
				`INSERT INTO prescriptions (user_id, workout_name, position, exercise_name, sets, rest_seconds, target_reps)
				 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				p.UserID, p.WorkoutName, i, ex.ExerciseName, ex.Sets, ex.RestSeconds, ex.TargetReps)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting prescription: %w", err)
		}
		return nil
	})
}

// GetPrescription returns the prescription for (user, workout), or nil when none exists.
func (db *DB) GetPrescription(ctx context.Context, userID int, workoutName string) (*models.Prescription, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_name, sets, rest_seconds, target_reps
		 FROM prescriptions
		 WHERE user_id = $1 AND workout_name = $2
		 ORDER BY position ASC`,
		userID, workoutName)
	if err != nil {
		return nil, fmt.Errorf("querying prescription: %w", err)
	}
	defer rows.Close()

	p := &models.Prescription{UserID: userID, WorkoutName: workoutName}
	for rows.Next() {
		var ex models.PrescribedExercise
		if err := rows.Scan(&ex.ExerciseName, &ex.Sets, &ex.RestSeconds, &ex.TargetReps); err != nil {
			return nil, fmt.Errorf("scanning prescription: %w", err)
		}
		p.Exercises = append(p.Exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(p.Exercises) == 0 {
		return nil, nil
	}
	return p, nil
}

// ListPrescriptions returns every prescription owned by userID, grouped by workout.
func (db *DB) ListPrescriptions(ctx context.Context, userID int) ([]models.Prescription, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT workout_name, exercise_name, sets, rest_seconds, target_reps
		 FROM prescriptions
		 WHERE user_id = $1
		 ORDER BY workout_name ASC, position ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying prescriptions: %w", err)
	}
	defer rows.Close()

	var result []models.Prescription
	for rows.Next() {
		var name string
		var ex models.PrescribedExercise
		if err := rows.Scan(&name, &ex.ExerciseName, &ex.Sets, &ex.RestSeconds, &ex.TargetReps); err != nil {
			return nil, fmt.Errorf("scanning prescription: %w", err)
		}
		if len(result) == 0 || result[len(result)-1].WorkoutName != name {
			result = append(result, models.Prescription{UserID: userID, WorkoutName: name})
		}
		last := &result[len(result)-1]
		last.Exercises = append(last.Exercises, ex)
	}
	return result, rows.Err()
}
