package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
)

const defaultRecentLimit = 20

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateUser adds a new user.
func (r *Repository) CreateUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}

	user := NewUser(name)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
	`, user.ID, user.Name, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUser returns ErrNotFound when the user does not exist.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	stmt, err := r.db.Stmt(StmtGetUser)
	if err != nil {
		return nil, err
	}

	var user User
	err = stmt.QueryRowContext(ctx, id).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// LogSession stores a session and all of its optional parts in one
// transaction. Nothing is written when any part fails.
func (r *Repository) LogSession(ctx context.Context, in SessionInput) (*Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Timestamp: ts.UTC().Truncate(time.Second),
		Notes:     in.Notes,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, timestamp, notes) VALUES (?, ?, ?, ?)
	`, session.ID, session.UserID, session.Timestamp, nullString(session.Notes)); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	if err := r.insertSamples(ctx, tx, session.ID, in.EEG); err != nil {
		return nil, err
	}
	if in.Context != nil {
		if err := insertContext(ctx, tx, session.ID, in.Context); err != nil {
			return nil, err
		}
	}
	if in.Journal != nil {
		if err := insertJournal(ctx, tx, session.ID, session.Timestamp, in.Journal); err != nil {
			return nil, err
		}
	}
	if in.Diet != nil {
		if err := insertDiet(ctx, tx, session.ID, session.Timestamp, in.Diet); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}

	slog.Debug("Session logged", "session_id", session.ID, "user_id", session.UserID, "samples", len(in.EEG))
	return session, nil
}

func (r *Repository) insertSamples(ctx context.Context, tx *sql.Tx, sessionID string, samples []analysis.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	prepared, err := r.db.Stmt(StmtInsertSample)
	if err != nil {
		return err
	}
	stmt := tx.StmtContext(ctx, prepared)
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, sessionID, s.Timestamp, s.Channel1, s.Channel2); err != nil {
			return fmt.Errorf("failed to insert eeg sample: %w", err)
		}
	}
	return nil
}

func insertContext(ctx context.Context, tx *sql.Tx, sessionID string, c *LifestyleContext) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lifestyle_context (
			session_id, sleep_hours, sleep_quality, last_meal_type,
			hours_since_meal, meal_size, meal_quality, hydration_level,
			caffeine_intake, exercise_type, exercise_duration_mins,
			mood_score, focus_score, mental_clarity, activity_type, time_of_day
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID, nullFloat(c.SleepHours), nullInt(c.SleepQuality), nullString(c.LastMealType),
		nullFloat(c.HoursSinceMeal), nullString(c.MealSize), nullInt(c.MealQuality), nullInt(c.HydrationLevel),
		nullInt(c.CaffeineIntake), nullString(c.ExerciseType), nullInt(c.ExerciseDurationMins),
		nullInt(c.MoodScore), nullInt(c.FocusScore), nullInt(c.MentalClarity), nullString(c.ActivityType), nullString(c.TimeOfDay),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lifestyle context: %w", err)
	}
	return nil
}

func insertJournal(ctx context.Context, tx *sql.Tx, sessionID string, ts time.Time, j *JournalEntry) error {
	if j.Timestamp.IsZero() {
		j.Timestamp = ts
	}
	j.ID = uuid.New().String()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (
			id, session_id, timestamp, mood, energy_level, stress_level,
			productivity_score, notes, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.ID, sessionID, j.Timestamp.UTC(), nullString(j.Mood), nullInt(j.EnergyLevel), nullInt(j.StressLevel),
		nullInt(j.ProductivityScore), nullString(j.Notes), nullString(j.Tags),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

func insertDiet(ctx context.Context, tx *sql.Tx, sessionID string, ts time.Time, d *DietLog) error {
	if d.Timestamp.IsZero() {
		d.Timestamp = ts
	}
	d.ID = uuid.New().String()
	items := d.FoodItems
	if items == nil {
		items = []string{}
	}
	foodItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode food items: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO diet_log (
			id, session_id, timestamp, meal_type, food_items, calories,
			protein, carbs, fats, fiber, sugar, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, sessionID, d.Timestamp.UTC(), nullString(d.MealType), string(foodItems), nullInt(d.Calories),
		nullFloat(d.Protein), nullFloat(d.Carbs), nullFloat(d.Fats), nullFloat(d.Fiber), nullFloat(d.Sugar), nullString(d.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert diet log: %w", err)
	}
	return nil
}

// GetSession returns ErrNotFound when the session does not exist.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	stmt, err := r.db.Stmt(StmtGetSession)
	if err != nil {
		return nil, err
	}

	var s Session
	err = stmt.QueryRowContext(ctx, id).Scan(&s.ID, &s.UserID, &s.Timestamp, &s.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &s, nil
}

// GetSessionData loads a session with its recording and self reports.
func (r *Repository) GetSessionData(ctx context.Context, id string) (*SessionData, error) {
	session, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	samples, err := r.LoadEEGSamples(ctx, id)
	if err != nil {
		return nil, err
	}

	data := &SessionData{Session: *session, EEG: samples}
	if data.Context, err = r.getContext(ctx, id); err != nil {
		return nil, err
	}
	if data.Journal, err = r.getJournal(ctx, id); err != nil {
		return nil, err
	}
	if data.Diet, err = r.getDiet(ctx, id); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Repository) getContext(ctx context.Context, sessionID string) (*LifestyleContext, error) {
	var (
		c                                                 LifestyleContext
		sleepHours, hoursSinceMeal                        sql.NullFloat64
		sleepQuality, mealQuality, hydration, caffeine    sql.NullInt64
		exerciseMins, mood, focus, clarity                sql.NullInt64
		mealType, mealSize, exercise, activity, timeOfDay sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT sleep_hours, sleep_quality, last_meal_type, hours_since_meal, meal_size,
			meal_quality, hydration_level, caffeine_intake, exercise_type, exercise_duration_mins,
			mood_score, focus_score, mental_clarity, activity_type, time_of_day
		FROM lifestyle_context WHERE session_id = ?
	`, sessionID).Scan(
		&sleepHours, &sleepQuality, &mealType, &hoursSinceMeal, &mealSize,
		&mealQuality, &hydration, &caffeine, &exercise, &exerciseMins,
		&mood, &focus, &clarity, &activity, &timeOfDay,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lifestyle context: %w", err)
	}

	c.SleepHours = floatPtr(sleepHours)
	c.SleepQuality = intPtr(sleepQuality)
	c.LastMealType = mealType.String
	c.HoursSinceMeal = floatPtr(hoursSinceMeal)
	c.MealSize = mealSize.String
	c.MealQuality = intPtr(mealQuality)
	c.HydrationLevel = intPtr(hydration)
	c.CaffeineIntake = intPtr(caffeine)
	c.ExerciseType = exercise.String
	c.ExerciseDurationMins = intPtr(exerciseMins)
	c.MoodScore = intPtr(mood)
	c.FocusScore = intPtr(focus)
	c.MentalClarity = intPtr(clarity)
	c.ActivityType = activity.String
	c.TimeOfDay = timeOfDay.String
	return &c, nil
}

func (r *Repository) getJournal(ctx context.Context, sessionID string) (*JournalEntry, error) {
	var (
		j                            JournalEntry
		mood, notes, tags            sql.NullString
		energy, stress, productivity sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, timestamp, mood, energy_level, stress_level, productivity_score, notes, tags
		FROM journal_entries WHERE session_id = ? ORDER BY timestamp ASC LIMIT 1
	`, sessionID).Scan(&j.ID, &j.Timestamp, &mood, &energy, &stress, &productivity, &notes, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entry: %w", err)
	}

	j.Mood = mood.String
	j.EnergyLevel = intPtr(energy)
	j.StressLevel = intPtr(stress)
	j.ProductivityScore = intPtr(productivity)
	j.Notes = notes.String
	j.Tags = tags.String
	return &j, nil
}

func (r *Repository) getDiet(ctx context.Context, sessionID string) (*DietLog, error) {
	var (
		d                                  DietLog
		mealType, foodItems, notes         sql.NullString
		calories                           sql.NullInt64
		protein, carbs, fats, fiber, sugar sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, timestamp, meal_type, food_items, calories, protein, carbs, fats, fiber, sugar, notes
		FROM diet_log WHERE session_id = ? ORDER BY timestamp ASC LIMIT 1
	`, sessionID).Scan(&d.ID, &d.Timestamp, &mealType, &foodItems, &calories, &protein, &carbs, &fats, &fiber, &sugar, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query diet log: %w", err)
	}

	d.MealType = mealType.String
	d.FoodItems = []string{}
	if foodItems.Valid && foodItems.String != "" {
		if err := json.Unmarshal([]byte(foodItems.String), &d.FoodItems); err != nil {
			return nil, fmt.Errorf("failed to decode food items: %w", err)
		}
	}
	d.Calories = intPtr(calories)
	d.Protein = floatPtr(protein)
	d.Carbs = floatPtr(carbs)
	d.Fats = floatPtr(fats)
	d.Fiber = floatPtr(fiber)
	d.Sugar = floatPtr(sugar)
	d.Notes = notes.String
	return &d, nil
}

// LoadEEGSamples returns a session's samples ordered by timestamp. A missing
// session has no samples.
func (r *Repository) LoadEEGSamples(ctx context.Context, sessionID string) ([]analysis.Sample, error) {
	stmt, err := r.db.Stmt(StmtSelectSamples)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query eeg samples: %w", err)
	}
	defer rows.Close()

	samples := []analysis.Sample{}
	for rows.Next() {
		var s analysis.Sample
		if err := rows.Scan(&s.Timestamp, &s.Channel1, &s.Channel2); err != nil {
			return nil, fmt.Errorf("failed to scan eeg sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eeg samples: %w", err)
	}
	return samples, nil
}

// AppendEEGSamples adds imported samples to an existing session. The new
// samples must not start before the last stored one.
func (r *Repository) AppendEEGSamples(ctx context.Context, sessionID string, samples []analysis.Sample) (int, error) {
	if len(samples) == 0 {
		return 0, &ValidationError{Field: "eeg", Message: "no samples to import"}
	}
	if err := analysis.ValidateSamples(samples); err != nil {
		return 0, &ValidationError{Field: "eeg", Message: err.Error()}
	}
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM eeg_data WHERE session_id = ?`, sessionID,
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to query last sample: %w", err)
	}
	if last.Valid && samples[0].Timestamp < last.Float64 {
		return 0, &ValidationError{
			Field:   "eeg",
			Message: fmt.Sprintf("first timestamp %v precedes stored %v", samples[0].Timestamp, last.Float64),
		}
	}

	if err := r.insertSamples(ctx, tx, sessionID, samples); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit samples: %w", err)
	}
	return len(samples), nil
}

// ListRecentSessions returns the newest sessions of a user first.
func (r *Repository) ListRecentSessions(ctx context.Context, userID string, limit int) ([]SessionOverview, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.timestamp,
			COALESCE(lc.activity_type, ''), COALESCE(lc.time_of_day, ''),
			lc.focus_score, lc.mental_clarity, lc.mood_score,
			(SELECT COUNT(*) FROM eeg_data e WHERE e.session_id = s.id)
		FROM sessions s
		LEFT JOIN lifestyle_context lc ON lc.session_id = s.id
		WHERE s.user_id = ?
		ORDER BY s.timestamp DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionOverview{}
	for rows.Next() {
		var (
			o                    SessionOverview
			focus, clarity, mood sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.Timestamp, &o.ActivityType, &o.TimeOfDay, &focus, &clarity, &mood, &o.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		o.FocusScore = intPtr(focus)
		o.MentalClarity = intPtr(clarity)
		o.MoodScore = intPtr(mood)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListSessionRecords returns the sessions of a user that have a lifestyle
// context, joined with their first journal and diet rows, oldest first.
func (r *Repository) ListSessionRecords(ctx context.Context, userID string, filter RecordFilter) ([]SessionRecord, error) {
	query := `
		SELECT s.id, s.timestamp,
			lc.sleep_hours, lc.sleep_quality, COALESCE(lc.last_meal_type, ''), lc.hours_since_meal,
			COALESCE(lc.exercise_type, ''), lc.mood_score, lc.focus_score, lc.mental_clarity,
			COALESCE(lc.activity_type, ''), COALESCE(lc.time_of_day, ''),
			j.energy_level, j.stress_level, j.productivity_score,
			COALESCE(d.meal_type, '')
		FROM sessions s
		JOIN lifestyle_context lc ON lc.session_id = s.id
		LEFT JOIN journal_entries j ON j.id = (
			SELECT id FROM journal_entries WHERE session_id = s.id ORDER BY timestamp LIMIT 1)
		LEFT JOIN diet_log d ON d.id = (
			SELECT id FROM diet_log WHERE session_id = s.id ORDER BY timestamp LIMIT 1)
		WHERE s.user_id = ?`
	args := []any{userID}
	if !filter.From.IsZero() {
		query += ` AND s.timestamp >= ?`
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += ` AND s.timestamp <= ?`
		args = append(args, filter.To.UTC())
	}
	query += ` ORDER BY s.timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	records := []SessionRecord{}
	for rows.Next() {
		var (
			rec                                      SessionRecord
			sleepHours, sleepQuality, hoursSinceMeal sql.NullFloat64
			mood, focus, clarity                     sql.NullFloat64
			energy, stress, productivity             sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.SessionID, &rec.Timestamp,
			&sleepHours, &sleepQuality, &rec.LastMealType, &hoursSinceMeal,
			&rec.ExerciseType, &mood, &focus, &clarity,
			&rec.ActivityType, &rec.TimeOfDay,
			&energy, &stress, &productivity,
			&rec.DietMealType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		rec.SleepHours = floatOrNaN(sleepHours)
		rec.SleepQuality = floatOrNaN(sleepQuality)
		rec.HoursSinceMeal = floatOrNaN(hoursSinceMeal)
		rec.Mood = floatOrNaN(mood)
		rec.Focus = floatOrNaN(focus)
		rec.Clarity = floatOrNaN(clarity)
		rec.Energy = floatOrNaN(energy)
		rec.Stress = floatOrNaN(stress)
		rec.Productivity = floatOrNaN(productivity)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SessionDateRange returns the first and last session times of a user, or
// ErrNotFound when the user has no sessions.
func (r *Repository) SessionDateRange(ctx context.Context, userID string) (*DateRange, error) {
	var dr DateRange
	err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sessions WHERE user_id = ? ORDER BY timestamp ASC LIMIT 1`, userID,
	).Scan(&dr.First)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sessions of user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query first session: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sessions WHERE user_id = ? ORDER BY timestamp DESC LIMIT 1`, userID,
	).Scan(&dr.Last); err != nil {
		return nil, fmt.Errorf("failed to query last session: %w", err)
	}
	return &dr, nil
}

// DeleteSession removes a session and every row that belongs to it.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"eeg_data", "lifestyle_context", "journal_entries", "diet_log"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	slog.Info("Session deleted", "session_id", id)
	return nil
}
