package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"premunia_crm_backend/internal/imports/repository"
	"premunia_crm_backend/internal/imports/transport"
	prospecttransport "premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/google/uuid"
)

type memoryImports struct {
	saved      []repository.DataImport
	listParams repository.ListParams
}

func (m *memoryImports) Create(_ context.Context, d repository.DataImport) (repository.DataImport, error) {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.saved = append(m.saved, d)
	return d, nil
}

func (m *memoryImports) List(_ context.Context, params repository.ListParams) ([]repository.DataImport, int, error) {
	m.listParams = params
	return m.saved, len(m.saved), nil
}

type recordingCreator struct {
	created []prospecttransport.CreateProspectRequest
	reject  map[string]error
}

func (r *recordingCreator) Create(_ context.Context, _ httpkit.Identity, req prospecttransport.CreateProspectRequest) (prospecttransport.ProspectResponse, error) {
	if err, ok := r.reject[req.LastName]; ok {
		return prospecttransport.ProspectResponse{}, err
	}
	r.created = append(r.created, req)
	return prospecttransport.ProspectResponse{}, nil
}

func newTestService() (*Service, *memoryImports, *recordingCreator) {
	repo := &memoryImports{}
	creator := &recordingCreator{reject: map[string]error{}}
	return New(repo, creator, validator.New(), logger.Discard()), repo, creator
}

var seller = httpkit.NewIdentity(uuid.New(), "seller@premunia.fr", httpkit.RoleCommercial)

const sampleCSV = "\ufefffirst_name,last_name,email,phone,birth_date,age,budget_monthly,health_status,urgency_level,postal_code,city,source\n" +
	`Jeanne,Martin,JEANNE@EXAMPLE.FR,0612345678,1957-04-12,,"95,50",good,high,69003,Lyon,` + "\n" +
	"Paul,Girard,,,,72,60,average,low,,,salon senior\n" +
	"Marie,,,,,70,80,good,low,,,\n" +
	"Luc,Petit,,,,,80,good,low,,,\n" +
	"Anne,Bernard,,,,75,abc,good,low,,,\n" +
	"Henri,Blanc,,,,75,90,unknown,low,,,\n"

func TestImportProspects(t *testing.T) {
	svc, repo, creator := newTestService()

	res, err := svc.ImportProspects(context.Background(), seller, "salon-mars.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.TotalRows != 6 || res.ImportedRows != 2 || res.FailedRows != 4 {
		t.Fatalf("unexpected counts %d/%d/%d", res.TotalRows, res.ImportedRows, res.FailedRows)
	}
	wantRows := []int{4, 5, 6, 7}
	for i, e := range res.Errors {
		if e.Row != wantRows[i] || e.Message == "" {
			t.Errorf("error %d: got %+v, want row %d", i, e, wantRows[i])
		}
	}
	if !strings.Contains(res.Errors[1].Message, "birth_date or age") || !strings.Contains(res.Errors[2].Message, "budget_monthly") {
		t.Fatalf("unexpected messages %+v", res.Errors)
	}

	jeanne := creator.created[0]
	if jeanne.Email != "jeanne@example.fr" || jeanne.BudgetMonthly != 95.5 || jeanne.Source != "import" {
		t.Fatalf("unexpected first request %+v", jeanne)
	}
	if jeanne.BirthDate == nil || jeanne.BirthDate.Format(time.DateOnly) != "1957-04-12" {
		t.Fatalf("birth date not parsed: %+v", jeanne.BirthDate)
	}
	if paul := creator.created[1]; paul.Age != 72 || paul.Source != "salon senior" {
		t.Fatalf("unexpected second request %+v", paul)
	}

	if len(repo.saved) != 1 || repo.saved[0].Filename != "salon-mars.csv" || *repo.saved[0].CreatedBy != seller.UserID() {
		t.Fatalf("import audit not recorded: %+v", repo.saved)
	}
}

func TestImportKeepsGoingAfterServiceErrors(t *testing.T) {
	svc, _, creator := newTestService()
	creator.reject["Martin"] = apperr.Conflict("prospect already exists")

	csv := "first_name,last_name,age,budget_monthly,health_status,urgency_level\n" +
		"Jeanne,Martin,70,90,good,low\n" +
		"Paul,Girard,72,60,average,low\n"
	res, err := svc.ImportProspects(context.Background(), seller, "doublons.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if res.ImportedRows != 1 || res.FailedRows != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if res.Errors[0] != (transport.RowError{Row: 2, Message: "prospect already exists"}) {
		t.Fatalf("unexpected error %+v", res.Errors[0])
	}
}

func TestImportRejectsBadFiles(t *testing.T) {
	svc, repo, _ := newTestService()
	tests := map[string]string{
		"empty":           "",
		"missing columns": "first_name,last_name\nJeanne,Martin\n",
		"no age":          "first_name,last_name,budget_monthly,health_status,urgency_level\n",
		"semicolons":      "first_name;last_name;age\n",
	}
	for name, body := range tests {
		_, err := svc.ImportProspects(context.Background(), seller, name+".csv", strings.NewReader(body))
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(repo.saved) != 0 {
		t.Fatal("rejected files must not be recorded")
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"1950-07-14", "14/07/1950"} {
		got, err := parseDate(raw)
		if err != nil || got.Format(time.DateOnly) != "1950-07-14" {
			t.Errorf("parseDate(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := parseDate("07-14-1950"); err == nil {
		t.Error("expected an error for an unsupported layout")
	}
}

func TestListScopesNonManagers(t *testing.T) {
	svc, repo, _ := newTestService()

	if _, err := svc.List(context.Background(), seller, transport.ListImportsRequest{}); err != nil {
		t.Fatal(err)
	}
	if repo.listParams.CreatedBy == nil || *repo.listParams.CreatedBy != seller.UserID() || repo.listParams.Limit != 20 {
		t.Fatalf("unexpected params %+v", repo.listParams)
	}

	manager := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleManager)
	if _, err := svc.List(context.Background(), manager, transport.ListImportsRequest{Page: 2, PageSize: 500}); err != nil {
		t.Fatal(err)
	}
	if repo.listParams.CreatedBy != nil || repo.listParams.Limit != 100 || repo.listParams.Offset != 100 {
		t.Fatalf("unexpected params %+v", repo.listParams)
	}
}
