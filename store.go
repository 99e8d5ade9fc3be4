package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrPartnerExists = errors.New("partner card already exists")
)

const pqUniqueViolation = "23505"

// Store is the persistence boundary of the HTTP layer.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash, fullName string) (int, error)
	UserCredentials(ctx context.Context, email string) (int, string, error)
	User(ctx context.Context, id int) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	UserSummaries(ctx context.Context, ids []int) (map[int]*UserSummary, error)

	ListPartners(ctx context.Context, q PartnerQuery) (*PartnerPage, error)
	Partner(ctx context.Context, id int) (*Partner, error)
	CreatePartner(ctx context.Context, p *Partner) error
	UpdatePartner(ctx context.Context, p *Partner) error
	DeletePartner(ctx context.Context, id int) error
}

// PartnerQuery filters and paginates the partner collection.
type PartnerQuery struct {
	Subject       string
	MinRating     float64
	Search        string
	University    string
	Major         string
	ExcludeUserID int
	Page          int
	Limit         int
}

// Offset is the number of rows skipped for the requested page.
func (q PartnerQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// PartnerPage is one page of partners plus the total matching the filters.
type PartnerPage struct {
	Items []Partner
	Total int
}

type pgStore struct {
	db *sql.DB
}

func newPGStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *pgStore) CreateUser(ctx context.Context, email, passwordHash, fullName string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, last_online)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`, email, passwordHash, fullName).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *pgStore) UserCredentials(ctx context.Context, email string) (int, string, error) {
	var id int
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE email = $1", email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, "", ErrNotFound
	} else if err != nil {
		return 0, "", fmt.Errorf("query credentials: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, "UPDATE users SET last_online = NOW() WHERE id = $1", id)
	return id, hash, nil
}

func (s *pgStore) User(ctx context.Context, id int) (*User, error) {
	var u User
	var avatar, university, major, mbti sql.NullString
	var birth sql.NullTime
	var gpa sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, role, avatar, university, major,
		       learning_needs, learning_goals, study_habits, mbti_type, birth_date, gpa,
		       created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &avatar, &university, &major,
		pq.Array(&u.LearningNeeds), pq.Array(&u.LearningGoals), pq.Array(&u.StudyHabits), &mbti, &birth, &gpa,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("query user %d: %w", id, err)
	}
	u.Avatar = avatar.String
	u.University = stringPtr(university)
	u.Major = stringPtr(major)
	u.MBTIType = stringPtr(mbti)
	if birth.Valid {
		t := birth.Time
		u.BirthDate = &t
	}
	if gpa.Valid {
		g := gpa.Float64
		u.GPA = &g
	}
	return &u, nil
}

func (s *pgStore) UpdateProfile(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			full_name = $2, avatar = $3, university = $4, major = $5,
			learning_needs = $6, learning_goals = $7, study_habits = $8,
			mbti_type = $9, birth_date = $10, gpa = $11, updated_at = NOW()
		WHERE id = $1
	`, u.ID, u.FullName, nullIfEmpty(u.Avatar), nullString(u.University), nullString(u.Major),
		pq.Array(nonNil(u.LearningNeeds)), pq.Array(nonNil(u.LearningGoals)), pq.Array(nonNil(u.StudyHabits)),
		nullString(u.MBTIType), nullTime(u.BirthDate), nullFloat(u.GPA),
	)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", u.ID, err)
	}
	return expectRow(res)
}

func (s *pgStore) UserSummaries(ctx context.Context, ids []int) (map[int]*UserSummary, error) {
	out := make(map[int]*UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(NULLIF(full_name, ''), 'User ' || id::text), COALESCE(avatar, '')
		FROM users WHERE id = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("query user summaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.FullName, &u.Avatar); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		out[u.ID] = &u
	}
	return out, rows.Err()
}

const partnerColumns = `id, user_id, name, avatar, bio, university, major, subjects, study_style, goals,
	availability, mbti_type, age, rating, review_count, created_at, updated_at`

func scanPartner(row rowScanner) (*Partner, error) {
	var p Partner
	var avatar, university, major, mbti sql.NullString
	var age sql.NullInt64
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &avatar, &p.Bio, &university, &major,
		pq.Array(&p.Subjects), pq.Array(&p.StudyStyle), pq.Array(&p.Goals), pq.Array(&p.Availability),
		&mbti, &age, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Avatar = avatar.String
	p.University = stringPtr(university)
	p.Major = stringPtr(major)
	p.MBTIType = stringPtr(mbti)
	if age.Valid {
		a := int(age.Int64)
		p.Age = &a
	}
	return &p, nil
}

// partnerFilter renders q as a WHERE clause with positional arguments.
func partnerFilter(q PartnerQuery) (string, []interface{}) {
	where := []string{"TRUE"}
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.ExcludeUserID > 0 {
		add("user_id <> $%d", q.ExcludeUserID)
	}
	if s := strings.TrimSpace(q.Subject); s != "" {
		add("EXISTS (SELECT 1 FROM unnest(subjects) AS s WHERE s ILIKE $%d)", escapeLike(s))
	}
	if q.MinRating > 0 {
		add("rating >= $%d", q.MinRating)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		add(`(name ILIKE $%[1]d OR bio ILIKE $%[1]d OR COALESCE(university, '') ILIKE $%[1]d OR COALESCE(major, '') ILIKE $%[1]d)`,
			"%"+escapeLike(s)+"%")
	}
	if s := strings.TrimSpace(q.University); s != "" {
		add("COALESCE(university, '') ILIKE $%d", "%"+escapeLike(s)+"%")
	}
	if s := strings.TrimSpace(q.Major); s != "" {
		add("COALESCE(major, '') ILIKE $%d", "%"+escapeLike(s)+"%")
	}
	return strings.Join(where, " AND "), args
}

func (s *pgStore) ListPartners(ctx context.Context, q PartnerQuery) (*PartnerPage, error) {
	where, args := partnerFilter(q)

	page := &PartnerPage{Items: []Partner{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM partners WHERE "+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count partners: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM partners WHERE %s ORDER BY rating DESC, id ASC LIMIT $%d OFFSET $%d",
		partnerColumns, where, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("query partners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		page.Items = append(page.Items, *p)
	}
	return page, rows.Err()
}

func (s *pgStore) Partner(ctx context.Context, id int) (*Partner, error) {
	p, err := scanPartner(s.db.QueryRowContext(ctx, "SELECT "+partnerColumns+" FROM partners WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("query partner %d: %w", id, err)
	}
	return p, nil
}

func (s *pgStore) CreatePartner(ctx context.Context, p *Partner) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO partners (user_id, name, avatar, bio, university, major, subjects, study_style, goals,
		                      availability, mbti_type, age)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, rating, review_count, created_at, updated_at
	`, p.UserID, p.Name, nullIfEmpty(p.Avatar), p.Bio, nullString(p.University), nullString(p.Major),
		pq.Array(nonNil(p.Subjects)), pq.Array(nonNil(p.StudyStyle)), pq.Array(nonNil(p.Goals)),
		pq.Array(nonNil(p.Availability)), nullString(p.MBTIType), nullInt(p.Age),
	).Scan(&p.ID, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPartnerExists
		}
		return fmt.Errorf("insert partner: %w", err)
	}
	return nil
}

func (s *pgStore) UpdatePartner(ctx context.Context, p *Partner) error {
	err := s.db.QueryRowContext(ctx, `
		UPDATE partners SET
			name = $2, avatar = $3, bio = $4, university = $5, major = $6, subjects = $7,
			study_style = $8, goals = $9, availability = $10, mbti_type = $11, age = $12,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, nullIfEmpty(p.Avatar), p.Bio, nullString(p.University), nullString(p.Major),
		pq.Array(nonNil(p.Subjects)), pq.Array(nonNil(p.StudyStyle)), pq.Array(nonNil(p.Goals)),
		pq.Array(nonNil(p.Availability)), nullString(p.MBTIType), nullInt(p.Age),
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("update partner %d: %w", p.ID, err)
	}
	return nil
}

func (s *pgStore) DeletePartner(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM partners WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete partner %d: %w", id, err)
	}
	return expectRow(res)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
