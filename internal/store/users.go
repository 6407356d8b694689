package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const userEntity = "user"

// UserFilter narrows ListUsers. Zero fields do not filter.
type UserFilter struct {
	Role       models.UserRole
	Department string
	Year       string
	Section    string
	Search     string
	IsActive   *bool
	Page
}

// rollNumber returns nil for an empty roll number so the UNIQUE column
// accepts any number of users without one.
func rollNumber(u *models.User) any {
	if u.Student == nil || u.Student.RollNumber == "" {
		return nil
	}
	return u.Student.RollNumber
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	doc, err := encode(models.StoredUser(u))
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO users (id, email, role, roll_number, department, is_active, created_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.Role), rollNumber(u), u.Department(), boolInt(u.IsActive), ts(u.CreatedAt), doc,
	)
	return translate(err, userEntity)
}

// UpdateUser replaces the stored document.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	doc, err := encode(models.StoredUser(u))
	if err != nil {
		return err
	}
	return execOne(ctx, s.q, userEntity,
		`UPDATE users SET email = ?, role = ?, roll_number = ?, department = ?, is_active = ?, doc = ?
		 WHERE id = ?`,
		u.Email, string(u.Role), rollNumber(u), u.Department(), boolInt(u.IsActive), doc, u.ID,
	)
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		return nil, translate(err, userEntity)
	}
	u, err := models.LoadStoredUser(func(v any) error { return json.Unmarshal([]byte(raw), v) })
	if err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.q.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.q.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

// DeleteUser hard-deletes a user. Registrations and attendance keep their
// snapshot fields.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return execOne(ctx, s.q, userEntity, `DELETE FROM users WHERE id = ?`, id)
}

// TouchLogin stamps the last login time without rewriting the rest of the
// document.
func (s *Store) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return execOne(ctx, s.q, userEntity,
		`UPDATE users SET doc = json_set(doc, '$.lastLogin', ?) WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
}

func (f UserFilter) conds() *where {
	w := &where{}
	if f.Role != "" {
		w.add("role = ?", string(f.Role))
	}
	if f.Department != "" {
		w.add("department = ?", f.Department)
	}
	if f.Year != "" {
		w.add("json_extract(doc, '$.student.year') = ?", f.Year)
	}
	if f.Section != "" {
		w.add("json_extract(doc, '$.student.section') = ?", f.Section)
	}
	if f.IsActive != nil {
		w.add("is_active = ?", boolInt(*f.IsActive))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		w.add("(email LIKE ? OR lower(json_extract(doc, '$.name')) LIKE ? OR roll_number LIKE ?)", like, like, like)
	}
	return w
}

// ListUsers returns one page of users matching f plus the total match count.
func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]models.User, int, error) {
	w := f.conds()
	total, err := count(ctx, s.q, `SELECT COUNT(*) FROM users`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT doc FROM users`+w.String()+` ORDER BY created_at DESC`+f.clause(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, err
		}
		u, err := models.LoadStoredUser(func(v any) error { return json.Unmarshal([]byte(raw), v) })
		if err != nil {
			return nil, 0, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UserIDs returns the ids of users with the given role, or of every user
// when role is empty.
func (s *Store) UserIDs(ctx context.Context, role models.UserRole) ([]string, error) {
	if role == "" {
		return listStrings(ctx, s.q, `SELECT id FROM users ORDER BY created_at`)
	}
	return listStrings(ctx, s.q, `SELECT id FROM users WHERE role = ? ORDER BY created_at`, string(role))
}

// UserIDsByDepartment returns active students in any of the departments.
func (s *Store) UserIDsByDepartment(ctx context.Context, role models.UserRole, departments []string) ([]string, error) {
	if len(departments) == 0 {
		return s.UserIDs(ctx, role)
	}
	args := []any{string(role)}
	marks := make([]string, len(departments))
	for i, d := range departments {
		marks[i] = "?"
		args = append(args, d)
	}
	return listStrings(ctx, s.q,
		`SELECT id FROM users WHERE role = ? AND is_active = 1 AND department IN (`+strings.Join(marks, ",")+`)`,
		args...)
}

// CountUsersByRole returns the number of users per role.
func (s *Store) CountUsersByRole(ctx context.Context) (map[models.UserRole]int, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[models.UserRole]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[models.UserRole(role)] = n
	}
	return out, rows.Err()
}
