package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/girderhq/girder/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore { return &roleStore{db: s.db} }
func (s *PGStore) Permissions(context.Context) PermissionStore {
	return &permissionStore{db: s.db}
}
func (s *PGStore) Projects(context.Context) ProjectStore { return &projectStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, tenant_id, username, display_name, password_hash, active, all_projects_access, created_at, updated_at
		 from users where id=$1`, id)
	return s.scanWithRoles(ctx, row)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, tenant_id, username, display_name, password_hash, active, all_projects_access, created_at, updated_at
		 from users where username=$1`, username)
	return s.scanWithRoles(ctx, row)
}

func (s *userStore) scanWithRoles(ctx context.Context, row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.DisplayName, &u.PasswordHash,
		&u.Active, &u.AllProjectsAccess, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	roles, err := s.rolesFor(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (s *userStore) rolesFor(ctx context.Context, userID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.tenant_id, r.name, r.is_system, r.created_at, r.updated_at
		 from roles r join user_roles ur on ur.role_id=r.id
		 where ur.user_id=$1 order by r.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[string]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}

	permRows, err := s.db.QueryContext(ctx,
		`select rp.role_id, p.key, rp.action
		 from role_permissions rp
		 join permissions p on p.id=rp.permission_id
		 join user_roles ur on ur.role_id=rp.role_id
		 where ur.user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()

	for permRows.Next() {
		var rp RolePermission
		if err := permRows.Scan(&rp.RoleID, &rp.Key, &rp.Action); err != nil {
			return nil, err
		}
		if i, ok := index[rp.RoleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, rp)
		}
	}
	return roles, permRows.Err()
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, tenant_id, name, is_system) values($1,$2,$3,$4)`,
		role.ID, role.TenantID, role.Name, role.System,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *roleStore) Find(ctx context.Context, tenantID, roleID string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, tenant_id, name, is_system, created_at, updated_at
		 from roles where id=$1 and tenant_id=$2`, roleID, tenantID)
	var role Role
	if err := row.Scan(&role.ID, &role.TenantID, &role.Name, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) ListByTenant(ctx context.Context, tenantID string) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, tenant_id, name, is_system, created_at, updated_at
		 from roles where tenant_id=$1 order by created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Rename(ctx context.Context, tenantID, roleID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`update roles set name=$1, updated_at=now() where id=$2 and tenant_id=$3 and is_system=false`,
		name, roleID, tenantID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return requireRow(res)
}

func (s *roleStore) Delete(ctx context.Context, tenantID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from roles where id=$1 and tenant_id=$2 and is_system=false`,
		roleID, tenantID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *roleStore) Assign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID,
	)
	return err
}

func (s *roleStore) Unassign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`,
		userID, roleID,
	)
	return err
}

// Permission store ---------------------------------------------------------
type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, keys []string) error {
	for _, key := range keys {
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, key) values($1,$2) on conflict (key) do nothing`,
			ids.New(), key,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) SetForRole(ctx context.Context, roleID string, entries []RolePermission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, entry := range entries {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id, action)
			 select $1, id, $3 from permissions where key=$2`,
			roleID, entry.Key, entry.Action,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Project store ------------------------------------------------------------
type projectStore struct{ db *sql.DB }

func (s *projectStore) TenantOf(ctx context.Context, projectID string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx,
		`select tenant_id from projects where id=$1`, projectID,
	).Scan(&tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return tenantID, nil
}

func (s *projectStore) MembershipsFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select project_id from project_members where user_id=$1 order by project_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		projects = append(projects, id)
	}
	return projects, rows.Err()
}

func (s *projectStore) AddMember(ctx context.Context, userID, projectID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into project_members(user_id, project_id) values($1,$2) on conflict do nothing`,
		userID, projectID,
	)
	return err
}

func (s *projectStore) RemoveMember(ctx context.Context, userID, projectID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from project_members where user_id=$1 and project_id=$2`,
		userID, projectID,
	)
	return err
}

// SQLSTATE 23505, raised when an insert or update trips a unique constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
