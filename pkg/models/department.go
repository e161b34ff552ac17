package models

import (
	"fmt"
	"strings"
)

// Department partitions data and routing inside a tenant.
type Department string

const (
	DepartmentLocacao        Department = "locacao"
	DepartmentVendas         Department = "vendas"
	DepartmentAdministrativo Department = "administrativo"
	DepartmentMarketing      Department = "marketing"
)

// Departments lists the known departments.
var Departments = []Department{
	DepartmentLocacao,
	DepartmentVendas,
	DepartmentAdministrativo,
	DepartmentMarketing,
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}

	return false
}

// ParseDepartment accepts the accented spelling used by the UI ("locação").
func ParseDepartment(s string) (Department, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("ç", "c", "ã", "a").Replace(normalized)

	d := Department(normalized)
	if !d.Valid() {
		return "", fmt.Errorf("unknown department %q", s)
	}

	return d, nil
}
