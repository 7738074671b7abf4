package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CustomerService customers, parent companies and bulk import
type CustomerService struct {
	repo     *repository.CustomerRepository
	validate *validator.Validate
}

func NewCustomerService(repo *repository.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo, validate: validator.New()}
}

// CustomerRequest create/update payload
type CustomerRequest struct {
	ParentCompanyID    *string    `json:"parent_company_id"`
	Name               *string    `json:"name"`
	Email              *string    `json:"email" binding:"omitempty,email"`
	Phone              *string    `json:"phone"`
	Address            *string    `json:"address"`
	State              *string    `json:"state"`
	City               *string    `json:"city"`
	Pincode            *string    `json:"pincode"`
	PersonOfContact    *string    `json:"person_of_contact"`
	GST                *string    `json:"gst"`
	PAN                *string    `json:"pan"`
	ResidentialAddress *string    `json:"residential_address"`
	BirthDate          *time.Time `json:"birth_date"`
	AnniversaryDate    *time.Time `json:"anniversary_date"`
}

func (s *CustomerService) Create(ctx context.Context, req *CustomerRequest) (*entity.Customer, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, invalid("name", "is required")
	}
	c := &entity.Customer{ID: uuid.New().String()}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.Get(ctx, c.ID)
}

func (s *CustomerService) Get(ctx context.Context, id string) (*entity.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "customer", id)
	}
	return c, nil
}

func (s *CustomerService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Customer, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

func (s *CustomerService) Update(ctx context.Context, id string, req *CustomerRequest) (*entity.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "customer", id)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.Get(ctx, id)
}

// SetDisabled customers are never hard deleted, task instances keep pointing at them
func (s *CustomerService) SetDisabled(ctx context.Context, id string, disabled bool) (*entity.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "customer", id)
	}
	c.Disabled = disabled
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

func (s *CustomerService) apply(ctx context.Context, c *entity.Customer, req *CustomerRequest) error {
	if req.ParentCompanyID != nil {
		if *req.ParentCompanyID == "" {
			c.ParentCompanyID = nil
		} else {
			if _, err := s.repo.FindParentCompany(ctx, *req.ParentCompanyID); err != nil {
				return lookup(err, "parent company", *req.ParentCompanyID)
			}
			id := *req.ParentCompanyID
			c.ParentCompanyID = &id
		}
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&c.Name, req.Name)
	set(&c.Email, req.Email)
	set(&c.Phone, req.Phone)
	set(&c.Address, req.Address)
	set(&c.State, req.State)
	set(&c.City, req.City)
	set(&c.Pincode, req.Pincode)
	set(&c.PersonOfContact, req.PersonOfContact)
	set(&c.GST, req.GST)
	set(&c.PAN, req.PAN)
	set(&c.ResidentialAddress, req.ResidentialAddress)
	if req.BirthDate != nil {
		c.BirthDate = req.BirthDate
	}
	if req.AnniversaryDate != nil {
		c.AnniversaryDate = req.AnniversaryDate
	}
	return nil
}

func (s *CustomerService) ListParentCompanies(ctx context.Context) ([]entity.ParentCompany, error) {
	return s.repo.ListParentCompanies(ctx)
}

func (s *CustomerService) CreateParentCompany(ctx context.Context, name string) (*entity.ParentCompany, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	p := &entity.ParentCompany{ID: uuid.New().String(), Name: name}
	if err := s.repo.CreateParentCompany(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("parent company %s already exists", name)
		}
		return nil, fmt.Errorf("create parent company: %w", err)
	}
	return p, nil
}

// ---- import ----

// CustomerImportRow one spreadsheet row
type CustomerImportRow struct {
	ParentCompany      string `validate:"max=255"`
	Name               string `validate:"required,max=255"`
	Email              string `validate:"omitempty,email"`
	Phone              string `validate:"omitempty,max=20"`
	Address            string `validate:"max=500"`
	State              string `validate:"max=100"`
	City               string `validate:"max=100"`
	Pincode            string `validate:"omitempty,numeric,max=10"`
	PersonOfContact    string `validate:"max=255"`
	GST                string `validate:"omitempty,alphanum,len=15"`
	PAN                string `validate:"omitempty,alphanum,len=10"`
	ResidentialAddress string `validate:"max=500"`
	BirthDate          string `validate:"omitempty,datetime=2006-01-02"`
	AnniversaryDate    string `validate:"omitempty,datetime=2006-01-02"`
}

// ImportRowError a rejected row, Row is 1-based including the header
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult outcome of an import
type ImportResult struct {
	Created int              `json:"created"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

var importColumns = map[string]string{
	"parent_company":      "ParentCompany",
	"parentcompany":       "ParentCompany",
	"company":             "ParentCompany",
	"name":                "Name",
	"customer_name":       "Name",
	"email":               "Email",
	"phone":               "Phone",
	"mobile":              "Phone",
	"address":             "Address",
	"state":               "State",
	"city":                "City",
	"pincode":             "Pincode",
	"pin":                 "Pincode",
	"person_of_contact":   "PersonOfContact",
	"contact_person":      "PersonOfContact",
	"gst":                 "GST",
	"gstin":               "GST",
	"pan":                 "PAN",
	"residential_address": "ResidentialAddress",
	"birth_date":          "BirthDate",
	"dob":                 "BirthDate",
	"anniversary_date":    "AnniversaryDate",
}

// Import reads customers from an .xlsx or .csv file. CSV input that is not
// valid UTF-8 is decoded as Windows-1252.
func (s *CustomerService) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, invalid("file", "cannot open spreadsheet: %v", err)
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("read spreadsheet: %w", err)
		}
	case ".csv":
		var err error
		rows, err = readCSV(r)
		if err != nil {
			return nil, invalid("file", "cannot parse csv: %v", err)
		}
	default:
		return nil, invalid("file", "unsupported file type %q", filepath.Ext(filename))
	}
	return s.importRows(ctx, rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	var src io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func (s *CustomerService) importRows(ctx context.Context, rows [][]string) (*ImportResult, error) {
	result := &ImportResult{}
	if len(rows) < 2 {
		return result, nil
	}

	columns := make([]string, len(rows[0]))
	hasName := false
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		columns[i] = importColumns[key]
		if columns[i] == "Name" {
			hasName = true
		}
	}
	if !hasName {
		return nil, invalid("file", "header row has no name column")
	}

	parents := map[string]*string{}
	var customers []entity.Customer
	for i, row := range rows[1:] {
		rowNo := i + 2
		if isBlankRow(row) {
			continue
		}
		item := rowToImport(columns, row)
		if err := s.validate.Struct(item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{Row: rowNo, Message: describeValidation(err)})
			continue
		}

		c := entity.Customer{
			ID:                 uuid.New().String(),
			Name:               item.Name,
			Email:              strings.ToLower(item.Email),
			Phone:              item.Phone,
			Address:            item.Address,
			State:              item.State,
			City:               item.City,
			Pincode:            item.Pincode,
			PersonOfContact:    item.PersonOfContact,
			GST:                strings.ToUpper(item.GST),
			PAN:                strings.ToUpper(item.PAN),
			ResidentialAddress: item.ResidentialAddress,
			BirthDate:          parseImportDate(item.BirthDate),
			AnniversaryDate:    parseImportDate(item.AnniversaryDate),
		}
		if item.ParentCompany != "" {
			pid, err := s.parentCompanyID(ctx, parents, item.ParentCompany)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, ImportRowError{Row: rowNo, Message: err.Error()})
				continue
			}
			c.ParentCompanyID = pid
		}
		customers = append(customers, c)
	}

	if err := s.repo.CreateBatch(ctx, customers); err != nil {
		return nil, fmt.Errorf("create customers: %w", err)
	}
	result.Created = len(customers)
	return result, nil
}

func (s *CustomerService) parentCompanyID(ctx context.Context, cache map[string]*string, name string) (*string, error) {
	key := strings.ToLower(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}
	p, err := s.repo.FindParentCompanyByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		p = &entity.ParentCompany{ID: uuid.New().String(), Name: name}
		err = s.repo.CreateParentCompany(ctx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("parent company %s: %w", name, err)
	}
	id := p.ID
	cache[key] = &id
	return &id, nil
}

func rowToImport(columns []string, row []string) CustomerImportRow {
	var item CustomerImportRow
	fields := map[string]*string{
		"ParentCompany":      &item.ParentCompany,
		"Name":               &item.Name,
		"Email":              &item.Email,
		"Phone":              &item.Phone,
		"Address":            &item.Address,
		"State":              &item.State,
		"City":               &item.City,
		"Pincode":            &item.Pincode,
		"PersonOfContact":    &item.PersonOfContact,
		"GST":                &item.GST,
		"PAN":                &item.PAN,
		"ResidentialAddress": &item.ResidentialAddress,
		"BirthDate":          &item.BirthDate,
		"AnniversaryDate":    &item.AnniversaryDate,
	}
	for i, col := range columns {
		if col == "" || i >= len(row) {
			continue
		}
		*fields[col] = strings.TrimSpace(row[i])
	}
	return item
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseImportDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
