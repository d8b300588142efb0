package dashboard

import (
	"bytes"
	"io"
	"testing"

	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type fixture struct {
	north, south models.Branch
}

// seed: Cola 6/carton, Water 12/carton, Retired inactive.
func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	north := testutil.CreateBranch(t, db, "North")
	south := testutil.CreateBranch(t, db, "South")
	cola := testutil.CreateProduct(t, db, "Cola", 6)
	water := testutil.CreateProduct(t, db, "Water", 12)
	retired := testutil.CreateProduct(t, db, "Retired", 1)
	require.NoError(t, db.Model(&retired).Update("is_active", false).Error)

	testutil.CreateStock(t, db, cola.ID, north.ID, 2, 3, 10)   // 15, ok
	testutil.CreateStock(t, db, water.ID, north.ID, 0, 5, 12)  // 5, below
	testutil.CreateStock(t, db, cola.ID, south.ID, 0, 0, 1)    // 0, below
	testutil.CreateStock(t, db, retired.ID, south.ID, 0, 0, 5) // inactive, ignored
	return fixture{north: north, south: south}
}

func TestLoadKPIs(t *testing.T) {
	db := testutil.NewDB(t)
	fx := seed(t, db)

	k, err := LoadKPIs(db, 0)
	require.NoError(t, err)
	assert.Equal(t, KPIs{ActiveProducts: 2, Branches: 2, BelowMinRecords: 2, TotalUnits: 20}, k)

	k, err = LoadKPIs(db, fx.north.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), k.Branches)
	assert.Equal(t, int64(1), k.BelowMinRecords)
	assert.Equal(t, int64(20), k.TotalUnits)

	k, err = LoadKPIs(testutil.NewDB(t), 0)
	require.NoError(t, err)
	assert.Equal(t, KPIs{}, k)
}

func TestLoadSummary(t *testing.T) {
	db := testutil.NewDB(t)
	fx := seed(t, db)

	rows, err := LoadSummary(db, SummaryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"North/Cola", "North/Water", "South/Cola"},
		[]string{rows[0].BranchName + "/" + rows[0].ProductName, rows[1].BranchName + "/" + rows[1].ProductName, rows[2].BranchName + "/" + rows[2].ProductName})
	assert.Equal(t, 15, rows[0].TotalUnits)
	assert.False(t, rows[0].BelowMin)
	assert.True(t, rows[1].BelowMin)

	rows, err = LoadSummary(db, SummaryOptions{BelowMin: true})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = LoadSummary(db, SummaryOptions{BranchID: fx.south.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cola", rows[0].ProductName)

	rows, err = LoadSummary(db, SummaryOptions{Search: "SOUTH"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = LoadSummary(db, SummaryOptions{Search: "wat", BelowMin: true, BranchID: fx.north.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Water", rows[0].ProductName)
}

func newApp(s auth.Session) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxSessionKey, s)
		return c.Next()
	})
	app.Get("/dashboard/kpis", KPIsHandler())
	app.Get("/dashboard/summary", SummaryHandler())
	app.Get("/dashboard/summary.xlsx", SummaryExportHandler())
	return app
}

func TestDashboardHandlers(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	fx := seed(t, db)

	admin := newApp(auth.Session{Role: models.RoleSuperAdmin})

	var k KPIs
	resp := testutil.Do(t, admin, "GET", "/dashboard/kpis", "", nil, &k)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), k.BelowMinRecords)

	var rows []SummaryRow
	testutil.Do(t, admin, "GET", "/dashboard/summary?below_min=true", "", nil, &rows)
	assert.Len(t, rows, 2)

	manager := newApp(auth.Session{Role: models.RoleStoreManager, BranchID: &fx.south.ID})
	testutil.Do(t, manager, "GET", "/dashboard/summary?branch_id=1", "", nil, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, fx.south.ID, rows[0].BranchID)
}

func TestSummaryExport(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	seed(t, db)

	resp := testutil.Do(t, newApp(auth.Session{Role: models.RoleAccountant}), "GET", "/dashboard/summary.xlsx", "", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "stock_summary_")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Branch", got[0][0])
	assert.Equal(t, []string{"North", "Cola", "SKU-Cola", "6", "2", "3", "15", "10", "no"}, got[1])
	assert.Equal(t, "yes", got[3][8])
}
