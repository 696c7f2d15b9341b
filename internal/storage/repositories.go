package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const clubColumns = `id, name, description, category, tags, image_url, next_event, created_at, updated_at`

// ClubRepository handles club reads and writes.
type ClubRepository struct {
	db DB
}

// NewClubRepository creates a new club repository.
func NewClubRepository(db DB) *ClubRepository {
	return &ClubRepository{db: db}
}

// Create inserts a new club.
func (r *ClubRepository) Create(ctx context.Context, club *Club) error {
	if club.ID == "" {
		club.ID = uuid.NewString()
	}
	club.Category = NormalizeLabel(club.Category)
	club.Tags = NormalizeLabels(club.Tags)
	club.CreatedAt = time.Now()
	club.UpdatedAt = time.Now()

	tagsJSON, err := marshalTags(club.Tags)
	if err != nil {
		return err
	}

	var nextEvent sql.NullString
	if club.NextEvent != nil {
		data, err := json.Marshal(club.NextEvent)
		if err != nil {
			return fmt.Errorf("marshal next event: %w", err)
		}
		nextEvent = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO clubs (id, name, description, category, tags, image_url, next_event, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		club.ID, club.Name, club.Description, club.Category,
		tagsJSON, club.ImageURL, nextEvent, club.CreatedAt, club.UpdatedAt,
	)
	return err
}

// List returns all clubs ordered by name.
func (r *ClubRepository) List(ctx context.Context) ([]Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	return scanClubs(rows)
}

// GetByID retrieves a club by ID.
func (r *ClubRepository) GetByID(ctx context.Context, id string) (*Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs WHERE id = $1`
	club, err := scanClub(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return club, nil
}

// SearchText returns clubs whose name, description, or category contains the
// query, case-insensitively, capped at limit.
func (r *ClubRepository) SearchText(ctx context.Context, text string, limit int) ([]Club, error) {
	pattern := "%" + strings.ToLower(text) + "%"
	query := `
		SELECT ` + clubColumns + ` FROM clubs
		WHERE lower(name) LIKE $1 OR lower(description) LIKE $1 OR lower(category) LIKE $1
		ORDER BY name
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search clubs: %w", err)
	}
	defer rows.Close()

	return scanClubs(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClub(row rowScanner) (*Club, error) {
	var (
		club      Club
		tagsJSON  string
		nextEvent sql.NullString
	)
	err := row.Scan(
		&club.ID, &club.Name, &club.Description, &club.Category,
		&tagsJSON, &club.ImageURL, &nextEvent, &club.CreatedAt, &club.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if club.Tags, err = unmarshalTags(tagsJSON); err != nil {
		return nil, err
	}
	if nextEvent.Valid {
		var ne NextEvent
		if err := json.Unmarshal([]byte(nextEvent.String), &ne); err != nil {
			return nil, fmt.Errorf("unmarshal next event: %w", err)
		}
		club.NextEvent = &ne
	}
	return &club, nil
}

func scanClubs(rows *sql.Rows) ([]Club, error) {
	var clubs []Club
	for rows.Next() {
		club, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, *club)
	}
	return clubs, rows.Err()
}

// TagRepository handles the authoritative tag catalog.
type TagRepository struct {
	db DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db DB) *TagRepository {
	return &TagRepository{db: db}
}

// ListCatalog returns all catalog tags ordered by name.
func (r *TagRepository) ListCatalog(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Upsert adds a tag to the catalog if it is not already present.
func (r *TagRepository) Upsert(ctx context.Context, name string) error {
	name = NormalizeLabel(name)
	if name == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

// ProfileRepository handles user preference profiles.
type ProfileRepository struct {
	db DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get retrieves a profile by user ID.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*UserPreferenceProfile, error) {
	query := `
		SELECT user_id, preference_tags, took_quiz, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`
	var (
		profile  UserPreferenceProfile
		tagsJSON string
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &tagsJSON, &profile.TookQuiz,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if profile.PreferenceTags, err = unmarshalTags(tagsJSON); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetPreferenceTags returns the user's preference tags, or an empty slice
// when the user has no profile yet.
func (r *ProfileRepository) GetPreferenceTags(ctx context.Context, userID string) ([]string, error) {
	profile, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile.PreferenceTags, nil
}

// UpdatePreferenceTags replaces the user's preference tags wholesale,
// creating the profile row if needed.
func (r *ProfileRepository) UpdatePreferenceTags(ctx context.Context, userID string, tags []string) error {
	tagsJSON, err := marshalTags(tags)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO profiles (user_id, preference_tags, took_quiz, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET preference_tags = $2, updated_at = $3
	`
	_, err = r.db.ExecContext(ctx, query, userID, tagsJSON, now)
	return err
}

// MarkQuizTaken flags the profile as having completed onboarding.
func (r *ProfileRepository) MarkQuizTaken(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET took_quiz = TRUE, updated_at = $2 WHERE user_id = $1`,
		userID, time.Now())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuizRepository handles quiz questions, options, and raw responses.
type QuizRepository struct {
	db DB
}

// NewQuizRepository creates a new quiz repository.
func NewQuizRepository(db DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// ListQuestions returns all questions with their options, in quiz order.
func (r *QuizRepository) ListQuestions(ctx context.Context) ([]QuizQuestion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, question_text, position FROM quiz_questions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	defer rows.Close()

	var questions []QuizQuestion
	byID := make(map[string]int)
	for rows.Next() {
		var q QuizQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.Position); err != nil {
			return nil, err
		}
		byID[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.db.QueryContext(ctx,
		`SELECT id, question_id, option_text, tags FROM quiz_question_options ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quiz options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			opt      QuizOption
			tagsJSON string
		)
		if err := optRows.Scan(&opt.ID, &opt.QuestionID, &opt.Text, &tagsJSON); err != nil {
			return nil, err
		}
		if opt.Tags, err = unmarshalTags(tagsJSON); err != nil {
			return nil, err
		}
		if idx, ok := byID[opt.QuestionID]; ok {
			questions[idx].Options = append(questions[idx].Options, opt)
		}
	}
	return questions, optRows.Err()
}

// ListResponses returns the user's recorded selections.
func (r *QuizRepository) ListResponses(ctx context.Context, userID string) ([]QuizResponse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, question_id, option_id FROM quiz_responses WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list quiz responses: %w", err)
	}
	defer rows.Close()

	var responses []QuizResponse
	for rows.Next() {
		var resp QuizResponse
		if err := rows.Scan(&resp.UserID, &resp.QuestionID, &resp.OptionID); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// ReplaceResponses deletes the user's prior selections and inserts the new set.
func (r *QuizRepository) ReplaceResponses(ctx context.Context, userID string, responses []QuizResponse) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM quiz_responses WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear quiz responses: %w", err)
	}

	for _, resp := range responses {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO quiz_responses (user_id, question_id, option_id) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, question_id, option_id) DO NOTHING`,
			userID, resp.QuestionID, resp.OptionID)
		if err != nil {
			return fmt.Errorf("insert quiz response: %w", err)
		}
	}
	return nil
}

// UpsertQuestion inserts or updates a question and its options. Used by the
// seed path; questions are otherwise read-only at runtime.
func (r *QuizRepository) UpsertQuestion(ctx context.Context, q *QuizQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quiz_questions (id, question_text, position) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET question_text = EXCLUDED.question_text, position = EXCLUDED.position`,
		q.ID, q.Text, q.Position)
	if err != nil {
		return fmt.Errorf("upsert quiz question: %w", err)
	}

	for i := range q.Options {
		opt := &q.Options[i]
		if opt.ID == "" {
			opt.ID = uuid.NewString()
		}
		opt.QuestionID = q.ID
		tagsJSON, err := marshalTags(opt.Tags)
		if err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO quiz_question_options (id, question_id, option_text, tags) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET option_text = EXCLUDED.option_text, tags = EXCLUDED.tags`,
			opt.ID, opt.QuestionID, opt.Text, tagsJSON)
		if err != nil {
			return fmt.Errorf("upsert quiz option: %w", err)
		}
	}
	return nil
}

// FollowRepository handles club follows.
type FollowRepository struct {
	db DB
}

// NewFollowRepository creates a new follow repository.
func NewFollowRepository(db DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// Follow records that a user follows a club. Following twice is a no-op.
func (r *FollowRepository) Follow(ctx context.Context, userID, clubID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (user_id, club_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, club_id) DO NOTHING`, userID, clubID)
	return err
}

// Unfollow removes a follow. Unfollowing a club not followed is a no-op.
func (r *FollowRepository) Unfollow(ctx context.Context, userID, clubID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE user_id = $1 AND club_id = $2`, userID, clubID)
	return err
}

// ListFollowed returns the clubs a user follows, ordered by name.
func (r *FollowRepository) ListFollowed(ctx context.Context, userID string) ([]Club, error) {
	query := `
		SELECT ` + prefixedClubColumns("c") + ` FROM clubs c
		JOIN follows f ON f.club_id = c.id
		WHERE f.user_id = $1
		ORDER BY c.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list followed clubs: %w", err)
	}
	defer rows.Close()

	return scanClubs(rows)
}

func prefixedClubColumns(alias string) string {
	cols := strings.Split(clubColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

// EventRepository handles club events and signups.
type EventRepository struct {
	db DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *ClubEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO club_events (id, club_id, title, starts_at, location)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.ClubID, event.Title, event.StartsAt, event.Location)
	return err
}

// ListByClub returns a club's events ordered by start time.
func (r *EventRepository) ListByClub(ctx context.Context, clubID string) ([]ClubEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, club_id, title, starts_at, location FROM club_events
		 WHERE club_id = $1 ORDER BY starts_at`, clubID)
	if err != nil {
		return nil, fmt.Errorf("list club events: %w", err)
	}
	defer rows.Close()

	var events []ClubEvent
	for rows.Next() {
		var e ClubEvent
		if err := rows.Scan(&e.ID, &e.ClubID, &e.Title, &e.StartsAt, &e.Location); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SignUp records an event signup. Signing up twice is a no-op.
func (r *EventRepository) SignUp(ctx context.Context, eventID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_signups (event_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (event_id, user_id) DO NOTHING`, eventID, userID)
	return err
}

// RemoveSignup deletes an event signup.
func (r *EventRepository) RemoveSignup(ctx context.Context, eventID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM event_signups WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	return err
}

// ListSignups returns the event IDs a user has signed up for.
func (r *EventRepository) ListSignups(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id FROM event_signups WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list event signups: %w", err)
	}
	defer rows.Close()

	var eventIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		eventIDs = append(eventIDs, id)
	}
	return eventIDs, rows.Err()
}
