package importer

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"nfe-import-backend/models"
	"nfe-import-backend/nfe"

	"gorm.io/gorm"
)

// memStores is an in-memory implementation of every pipeline collaborator,
// mutex-guarded maps standing in for the database.
type memStores struct {
	mu sync.Mutex

	products   map[string]*models.Product // by id
	categories []models.ProductCategory
	locations  []models.StockLocation
	stock      map[string]*models.StockRecord // by "productID/locationID"
	logs       map[string]*models.ImportedInvoice
	suppliers  map[string]*models.Supplier // by tax id

	nextProductID int
	nextStockID   uint
	nextLogID     uint
	nextSupplier  uint

	failProductCodes map[string]bool // creates for these codes fail
	logCreateErr     error           // forced error on log create
}

func newMemStores() *memStores {
	return &memStores{
		products:         make(map[string]*models.Product),
		categories:       []models.ProductCategory{{Id: 1, Name: "All"}},
		locations:        []models.StockLocation{{Id: 1, Name: "Stock", Usage: models.LocationUsageInternal}},
		stock:            make(map[string]*models.StockRecord),
		logs:             make(map[string]*models.ImportedInvoice),
		suppliers:        make(map[string]*models.Supplier),
		failProductCodes: make(map[string]bool),
	}
}

func (m *memStores) stores() Stores {
	return Stores{Catalog: m, Stock: m, Log: &memLog{m: m}, Locations: m, Issuers: m}
}

// ---- Catalog

func (m *memStores) FindByCode(code string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Active && p.InternalCode == code {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStores) FindByName(name string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Active && p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStores) Create(product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProductCodes[product.InternalCode] {
		return fmt.Errorf("forced create failure")
	}
	m.nextProductID++
	product.Id = fmt.Sprintf("prod-%d", m.nextProductID)
	m.products[product.Id] = product
	return nil
}

func (m *memStores) DefaultCategory() (*models.ProductCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.categories) == 0 {
		return nil, nil
	}
	return &m.categories[0], nil
}

// ---- Stock

func (m *memStores) ApplyDelta(productID string, locationID uint, qty float64, accessKey string) (StockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d", productID, locationID)
	if rec, ok := m.stock[key]; ok {
		rec.QuantityOnHand += qty
		rec.NfeReference = accessKey
		return StockResult{RecordID: rec.Id, Created: false}, nil
	}
	m.nextStockID++
	m.stock[key] = &models.StockRecord{
		Id:               m.nextStockID,
		ProductID:        productID,
		LocationID:       locationID,
		QuantityOnHand:   qty,
		ReservedQuantity: 0,
		NfeReference:     accessKey,
	}
	return StockResult{RecordID: m.nextStockID, Created: true}, nil
}

// ---- Import log
//
// Separate type because Catalog and ImportLog both declare a Create method
// with different signatures.

type memLog struct{ m *memStores }

func (l *memLog) ExistsByAccessKey(key string) (bool, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	_, ok := l.m.logs[key]
	return ok, nil
}

func (l *memLog) Create(record *models.ImportedInvoice) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if l.m.logCreateErr != nil {
		return l.m.logCreateErr
	}
	if _, ok := l.m.logs[record.AccessKey]; ok {
		return gorm.ErrDuplicatedKey
	}
	l.m.nextLogID++
	record.ID = l.m.nextLogID
	l.m.logs[record.AccessKey] = record
	return nil
}

func (l *memLog) AttachSummary(id uint, summary []byte) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	for _, rec := range l.m.logs {
		if rec.ID == id {
			rec.Summary = summary
			return nil
		}
	}
	return fmt.Errorf("log record %d not found", id)
}

// ---- Locations

func (m *memStores) DefaultInternal() (*models.StockLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.locations {
		if m.locations[i].Usage == models.LocationUsageInternal {
			return &m.locations[i], nil
		}
	}
	return nil, nil
}

// ---- Issuers

func (m *memStores) Upsert(invoice nfe.Invoice) (*models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if invoice.IssuerTaxID == "" {
		return nil, nil
	}
	if s, ok := m.suppliers[invoice.IssuerTaxID]; ok {
		s.Name = invoice.IssuerName
		return s, nil
	}
	m.nextSupplier++
	s := &models.Supplier{Id: m.nextSupplier, TaxID: invoice.IssuerTaxID, Name: invoice.IssuerName}
	m.suppliers[invoice.IssuerTaxID] = s
	return s, nil
}

// ----------------------------------------------------------------------------

func buildNFe(t *testing.T, accessKey string, lines string) *nfe.Document {
	t.Helper()
	xml := `<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe` + accessKey + `">
    <ide><nNF>1100</nNF><serie>1</serie><dhEmi>2025-09-10T14:30:00-03:00</dhEmi></ide>
    <emit><CNPJ>12345678000191</CNPJ><xNome>Distribuidora Exemplo LTDA</xNome></emit>
    ` + lines + `
    <total><ICMSTot><vNF>50.00</vNF></ICMSTot></total>
  </infNFe>
</NFe>`
	doc, err := nfe.Parse([]byte(xml))
	if err != nil {
		t.Fatalf("fixture parse failed: %v", err)
	}
	return doc
}

func line(code, name, qty, unit string) string {
	return `<det><prod><cProd>` + code + `</cProd><xProd>` + name + `</xProd><qCom>` + qty + `</qCom><vUnCom>` + unit + `</vUnCom></prod></det>`
}

const testKey = "35250912345678000191550010000011001"

var testCtx = ExecutionContext{UserID: "user-1", CompanyID: "company-1"}

func TestImportCreatesProductStockAndLog(t *testing.T) {
	mem := newMemStores()
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	summary, err := run(mem.stores(), testCtx, doc, []byte("<xml/>"), "nota.xml")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.Status != StatusCompleted {
		t.Errorf("status = %q", summary.Status)
	}
	if summary.CreatedCount != 1 || summary.UpdatedCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", summary.CreatedCount, summary.UpdatedCount)
	}
	if len(summary.TouchedIDs) != 1 {
		t.Errorf("touched ids = %v", summary.TouchedIDs)
	}

	if len(mem.products) != 1 {
		t.Fatalf("products = %d, want 1", len(mem.products))
	}
	var product *models.Product
	for _, p := range mem.products {
		product = p
	}
	if product.InternalCode != "P001" || product.Name != "Parafuso M8" {
		t.Errorf("product = %+v", product)
	}
	if product.Type != models.ProductTypeConsumable || product.Tracking != models.TrackingNone {
		t.Errorf("product type/tracking = %q/%q", product.Type, product.Tracking)
	}
	if product.ListPrice != 5.00 || product.CostPrice != 5.00 {
		t.Errorf("product prices = %v/%v", product.ListPrice, product.CostPrice)
	}

	rec := mem.stock[product.Id+"/1"]
	if rec == nil {
		t.Fatal("no stock record created")
	}
	if rec.QuantityOnHand != 10 || rec.ReservedQuantity != 0 {
		t.Errorf("stock = %+v", rec)
	}

	logRec, ok := mem.logs[testKey]
	if !ok {
		t.Fatal("no log entry created")
	}
	if logRec.Status != models.StatusPending || logRec.Direction != models.DirectionInbound {
		t.Errorf("log status/direction = %q/%q", logRec.Status, logRec.Direction)
	}
	if logRec.UserID != "user-1" || logRec.CompanyID != "company-1" {
		t.Errorf("log user/company = %q/%q", logRec.UserID, logRec.CompanyID)
	}
	if string(logRec.RawXML) != "<xml/>" || logRec.XMLFilename != "nota.xml" {
		t.Errorf("log blob/filename = %q/%q", logRec.RawXML, logRec.XMLFilename)
	}
	if len(logRec.Summary) == 0 {
		t.Error("summary not attached to log record")
	}
	if logRec.SupplierID == nil {
		t.Error("issuer not linked on log record")
	}
}

func TestReimportRejectedWithoutStockChange(t *testing.T) {
	mem := newMemStores()
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	if _, err := run(mem.stores(), testCtx, doc, nil, ""); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	doc2 := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))
	_, err := run(mem.stores(), testCtx, doc2, nil, "")
	dup, ok := err.(*DuplicateInvoiceError)
	if !ok {
		t.Fatalf("second run error = %v, want DuplicateInvoiceError", err)
	}
	if dup.Number != "1100" || dup.Series != "1" || dup.IssuerName != "Distribuidora Exemplo LTDA" {
		t.Errorf("duplicate error detail = %+v", dup)
	}
	if !strings.Contains(dup.Error(), "1100") {
		t.Errorf("duplicate message does not name the invoice: %q", dup.Error())
	}

	// Stock unchanged after the rejected re-import.
	for _, rec := range mem.stock {
		if rec.QuantityOnHand != 10 {
			t.Errorf("stock quantity after re-import = %v, want 10", rec.QuantityOnHand)
		}
	}
	if len(mem.products) != 1 {
		t.Errorf("products after re-import = %d, want 1", len(mem.products))
	}
}

func TestWriteTimeDuplicateTreatedAsDuplicateInvoice(t *testing.T) {
	mem := newMemStores()
	mem.logCreateErr = gorm.ErrDuplicatedKey
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	_, err := run(mem.stores(), testCtx, doc, nil, "")
	if _, ok := err.(*DuplicateInvoiceError); !ok {
		t.Fatalf("error = %v, want DuplicateInvoiceError", err)
	}
	if len(mem.stock) != 0 {
		t.Error("stock mutated despite constraint violation")
	}
}

func TestSameCodeTwiceCreatesOneProduct(t *testing.T) {
	mem := newMemStores()
	doc := buildNFe(t, testKey,
		line("P001", "Parafuso M8", "10", "5.00")+
			line("P001", "Parafuso M8", "5", "5.00"))

	summary, err := run(mem.stores(), testCtx, doc, nil, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(mem.products) != 1 {
		t.Fatalf("products = %d, want exactly 1", len(mem.products))
	}
	if summary.CreatedCount != 1 || summary.UpdatedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", summary.CreatedCount, summary.UpdatedCount)
	}
	if len(summary.TouchedIDs) != 1 {
		t.Errorf("touched ids = %v, want one unique id", summary.TouchedIDs)
	}
	for _, rec := range mem.stock {
		if rec.QuantityOnHand != 15 {
			t.Errorf("stock quantity = %v, want 15", rec.QuantityOnHand)
		}
	}
}

func TestStockAdditivityAcrossDocuments(t *testing.T) {
	mem := newMemStores()

	doc1 := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))
	if _, err := run(mem.stores(), testCtx, doc1, nil, ""); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	doc2 := buildNFe(t, "35250912345678000191550010000011099",
		line("P001", "Parafuso M8", "7", "5.00"))
	summary, err := run(mem.stores(), testCtx, doc2, nil, "")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.CreatedCount != 0 || summary.UpdatedCount != 1 {
		t.Errorf("counts = %d/%d, want 0/1", summary.CreatedCount, summary.UpdatedCount)
	}
	for _, rec := range mem.stock {
		if rec.QuantityOnHand != 17 {
			t.Errorf("stock quantity = %v, want 17", rec.QuantityOnHand)
		}
	}
	if len(mem.products) != 1 {
		t.Errorf("products = %d, want 1 across both documents", len(mem.products))
	}
}

func TestLineWithoutCodeWarnsAndSiblingsProcessed(t *testing.T) {
	mem := newMemStores()
	doc := buildNFe(t, testKey,
		`<det><prod><xProd>Sem codigo</xProd><qCom>3</qCom></prod></det>`+
			line("P002", "Porca M8", "20", "1.50"))

	summary, err := run(mem.stores(), testCtx, doc, nil, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.Status != StatusCompletedWithWarnings {
		t.Errorf("status = %q", summary.Status)
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "Sem codigo") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming the codeless product", summary.Warnings)
	}
	if summary.CreatedCount != 1 {
		t.Errorf("created = %d, want 1 (sibling line)", summary.CreatedCount)
	}
	if len(mem.products) != 1 {
		t.Errorf("products = %d, want 1", len(mem.products))
	}
}

func TestProductCreationFailureSkipsLineOnly(t *testing.T) {
	mem := newMemStores()
	mem.failProductCodes["P001"] = true
	doc := buildNFe(t, testKey,
		line("P001", "Parafuso M8", "10", "5.00")+
			line("P001", "Parafuso M8", "5", "5.00")+
			line("P002", "Porca M8", "20", "1.50"))

	summary, err := run(mem.stores(), testCtx, doc, nil, "")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.Status != StatusCompletedWithWarnings {
		t.Errorf("status = %q", summary.Status)
	}
	// First P001 line: creation failure warning; second P001 line: cached
	// failure surfaces as product-not-found; P002 succeeds.
	if len(summary.Warnings) != 2 {
		t.Errorf("warnings = %v, want 2", summary.Warnings)
	}
	if !strings.Contains(summary.Warnings[0], "Parafuso M8") {
		t.Errorf("first warning does not name the product: %q", summary.Warnings[0])
	}
	if !strings.Contains(summary.Warnings[1], "not found") {
		t.Errorf("second warning = %q, want product-not-found", summary.Warnings[1])
	}
	if summary.CreatedCount != 1 {
		t.Errorf("created = %d, want 1 (P002 only)", summary.CreatedCount)
	}
	if len(mem.products) != 1 {
		t.Errorf("products = %d, want 1", len(mem.products))
	}
}

func TestMissingCategoryIsFatalBeforeAnyMutation(t *testing.T) {
	mem := newMemStores()
	mem.categories = nil
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	_, err := run(mem.stores(), testCtx, doc, nil, "")
	if _, ok := err.(*MissingPrerequisiteError); !ok {
		t.Fatalf("error = %v, want MissingPrerequisiteError", err)
	}
	if len(mem.logs) != 0 || len(mem.products) != 0 || len(mem.stock) != 0 {
		t.Error("mutation happened despite missing category")
	}
}

func TestMissingLocationIsFatalBeforeAnyMutation(t *testing.T) {
	mem := newMemStores()
	mem.locations = nil
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	_, err := run(mem.stores(), testCtx, doc, nil, "")
	if _, ok := err.(*MissingPrerequisiteError); !ok {
		t.Fatalf("error = %v, want MissingPrerequisiteError", err)
	}
	if len(mem.logs) != 0 || len(mem.stock) != 0 {
		t.Error("mutation happened despite missing location")
	}
}

func TestExistingProductReusedByCode(t *testing.T) {
	mem := newMemStores()
	mem.products["prod-existing"] = &models.Product{
		Id: "prod-existing", InternalCode: "P001", Name: "Parafuso antigo", Active: true,
	}
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	if _, err := run(mem.stores(), testCtx, doc, nil, ""); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(mem.products) != 1 {
		t.Errorf("products = %d, want 1 (no duplicate created)", len(mem.products))
	}
	if mem.stock["prod-existing/1"] == nil {
		t.Error("stock not applied to the existing product")
	}
}

func TestInactiveProductNotReused(t *testing.T) {
	mem := newMemStores()
	mem.products["prod-archived"] = &models.Product{
		Id: "prod-archived", InternalCode: "P001", Name: "Parafuso M8", Active: false,
	}
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	if _, err := run(mem.stores(), testCtx, doc, nil, ""); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(mem.products) != 2 {
		t.Fatalf("products = %d, want 2 (archived product must not be resolved)", len(mem.products))
	}
	if mem.stock["prod-archived/1"] != nil {
		t.Error("stock applied to the archived product")
	}
}

func TestExistingProductReusedByName(t *testing.T) {
	mem := newMemStores()
	mem.products["prod-existing"] = &models.Product{
		Id: "prod-existing", InternalCode: "OTHER", Name: "Parafuso M8", Active: true,
	}
	doc := buildNFe(t, testKey, line("P001", "Parafuso M8", "10", "5.00"))

	if _, err := run(mem.stores(), testCtx, doc, nil, ""); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(mem.products) != 1 {
		t.Errorf("products = %d, want 1 (matched by name)", len(mem.products))
	}
}
