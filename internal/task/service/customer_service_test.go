package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/datachef-lab/taskify-backend/internal/task/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newCustomerService(t *testing.T) *CustomerService {
	db := testutil.SetupTestDB(t)
	return NewCustomerService(repository.NewRepositories(db).Customer)
}

func TestCustomerImport_CSV(t *testing.T) {
	svc := newCustomerService(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"Name,Email,Parent Company,Pincode,GSTIN,DOB",
		"Acme Solar,OPS@ACME.IN,Acme Group,560001,29abcde1234f1z5,1980-04-12",
		"Acme Wind,wind@acme.in,acme group,,,",
		",missing@name.in,,,,",
		"Bad Pin,pin@x.in,,56A001,,",
		",,,,,",
	}, "\n")

	res, err := svc.Import(ctx, "customers.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 4, res.Errors[0].Row)
	assert.Equal(t, 5, res.Errors[1].Row)

	items, total, err := svc.List(ctx, 1, 20, map[string]interface{}{"keyword": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	parents, err := svc.ListParentCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, parents, 1, "parent companies are matched case-insensitively")
	for _, c := range items {
		require.NotNil(t, c.ParentCompanyID)
		assert.Equal(t, parents[0].ID, *c.ParentCompanyID)
		if c.Name == "Acme Solar" {
			assert.Equal(t, "ops@acme.in", c.Email)
			assert.Equal(t, "29ABCDE1234F1Z5", c.GST)
			require.NotNil(t, c.BirthDate)
			assert.Equal(t, 1980, c.BirthDate.Year())
		}
	}
}

func TestCustomerImport_Windows1252CSV(t *testing.T) {
	svc := newCustomerService(t)

	// "Café Royal" with é as 0xE9
	raw := []byte("name,city\nCaf\xe9 Royal,Pune\n")
	res, err := svc.Import(context.Background(), "legacy.CSV", bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	items, _, err := svc.List(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Café Royal", items[0].Name)
}

func TestCustomerImport_XLSX(t *testing.T) {
	svc := newCustomerService(t)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]interface{}{
		{"Customer Name", "Mobile", "City"},
		{"Globex", "9876543210", "Chennai"},
		{"Initech", "9123456780", "Kochi"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	res, err := svc.Import(context.Background(), "export.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Failed)
}

func TestCustomerImport_Rejects(t *testing.T) {
	svc := newCustomerService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, "customers.txt", strings.NewReader("name\nx"))
	assertValidation(t, err)

	_, err = svc.Import(ctx, "customers.csv", strings.NewReader("email,phone\na@b.c,1"))
	assertValidation(t, err)

	res, err := svc.Import(ctx, "customers.csv", strings.NewReader("name"))
	require.NoError(t, err)
	assert.Zero(t, res.Created)
}

func TestCustomer_SoftDelete(t *testing.T) {
	svc := newCustomerService(t)
	ctx := context.Background()

	name := "Acme Solar"
	c, err := svc.Create(ctx, &CustomerRequest{Name: &name})
	require.NoError(t, err)

	disabled, err := svc.SetDisabled(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, disabled.Disabled)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	active, total, err := svc.List(ctx, 1, 10, map[string]interface{}{"disabled": false})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	empty := " "
	_, err = svc.Create(ctx, &CustomerRequest{Name: &empty})
	assertValidation(t, err)
}
