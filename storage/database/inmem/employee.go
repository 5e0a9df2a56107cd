package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
)

type employeeRepository struct {
	db *employeeTable
}

func NewEmployeeRepository(db *DB) employee.Repository {
	return &employeeRepository{db: db.employee}
}

func (repo *employeeRepository) query() []employee.Employee {
	emps := make([]employee.Employee, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		emps = append(emps, *e)
	}
	return emps
}

func (repo *employeeRepository) emailTaken(email, exceptID string) bool {
	for _, e := range repo.db.table {
		if e.Email == email && e.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *employeeRepository) CreateEmployee(_ context.Context, emp employee.Employee) (employee.Employee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.emailTaken(emp.Email, "") {
		return employee.Employee{}, employee.ErrEmailExists
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	repo.db.table[emp.ID] = &emp
	return emp, nil
}

func (repo *employeeRepository) GetEmployeeByID(_ context.Context, id string) (employee.Employee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if emp, ok := repo.db.table[id]; ok {
		return *emp, nil
	}
	return employee.Employee{}, employee.ErrNotFound
}

func (repo *employeeRepository) GetEmployeeByEmail(_ context.Context, email string) (employee.Employee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, emp := range repo.db.table {
		if emp.Email == email {
			return *emp, nil
		}
	}
	return employee.Employee{}, employee.ErrNotFound
}

func (repo *employeeRepository) QueryEmployees(
	_ context.Context,
	filter employee.QueryFilter,
	ordering ...core.DBOrdering,
) ([]employee.Employee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	emps := make([]employee.Employee, 0)
	for _, emp := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(emp.Name), search) &&
			!strings.Contains(emp.Email, search) &&
			!strings.Contains(strings.ToLower(emp.Department), search) {
			continue
		}
		if filter.Department != "" && !strings.EqualFold(emp.Department, filter.Department) {
			continue
		}
		if filter.Role != "" && emp.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && emp.IsActive != *filter.IsActive {
			continue
		}
		emps = append(emps, emp)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(emps, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareEmployees(emps[i], emps[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return emps[i].ID < emps[j].ID
	})
	return emps, nil
}

func (repo *employeeRepository) UpdateEmployee(_ context.Context, emp employee.Employee) (employee.Employee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[emp.ID]; !ok {
		return employee.Employee{}, employee.ErrNotFound
	}
	if repo.emailTaken(emp.Email, emp.ID) {
		return employee.Employee{}, employee.ErrEmailExists
	}
	repo.db.table[emp.ID] = &emp
	return emp, nil
}

func (repo *employeeRepository) DeleteEmployeesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func compareEmployees(a, b employee.Employee, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "department":
		return strings.Compare(strings.ToLower(a.Department), strings.ToLower(b.Department))
	case "designation":
		return strings.Compare(strings.ToLower(a.Designation), strings.ToLower(b.Designation))
	case "role":
		return strings.Compare(string(a.Role), string(b.Role))
	case "is_active":
		return compareBools(a.IsActive, b.IsActive)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Compare(b.LastLogin)
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
