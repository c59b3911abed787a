package models

// PrescribedExercise is one exercise slot of a workout prescription.
type PrescribedExercise struct {
	ExerciseName string `json:"exercise_name"`
	Sets         int    `json:"sets"`
	RestSeconds  int    `json:"rest_seconds"`
	TargetReps   int    `json:"target_reps"`
}

// Prescription is the ordered exercise list for one named workout.
type Prescription struct {
	UserID      int                  `json:"user_id"`
	WorkoutName string               `json:"workout_name"`
	Exercises   []PrescribedExercise `json:"exercises"`
}

// Exercise returns the prescribed slot for name, if present.
func (p *Prescription) Exercise(name string) (PrescribedExercise, bool) {
	for _, ex := range p.Exercises {
		if ex.ExerciseName == name {
			return ex, true
		}
	}
	return PrescribedExercise{}, false
}

// TotalSets returns the number of sets across all exercises.
func (p *Prescription) TotalSets() int {
	n := 0
	for _, ex := range p.Exercises {
		n += ex.Sets
	}
	return n
}
