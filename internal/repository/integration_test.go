package repository

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	gofakeit "github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"procurement/internal/config"
	"procurement/internal/models"
)

type testData struct {
	orgA, orgB     string
	ownerA, ownerB models.Employee
}

// OpenTestRepo connects to TEST_POSTGRES_CONN on a freshly migrated schema.
// Tests using it are skipped when the variable is not set.
func OpenTestRepo(t *testing.T) *Repository {
	t.Helper()

	conn := os.Getenv("TEST_POSTGRES_CONN")
	if conn == "" {
		t.Skip("TEST_POSTGRES_CONN is not set")
	}

	cfg := &config.PostgresConfig{Conn: conn, MaxOpenConns: 8, MaxIdleConns: 2}
	repo, err := NewRepository(context.Background(), nil, cfg, zap.NewNop())
	require.NoError(t, err, "could not open db by URL %q", conn)

	// clear potential leftovers
	require.NoError(t, repo.MigrateDown())
	require.NoError(t, repo.MigrateUp())

	t.Cleanup(func() {
		repo.MigrateDown()
		repo.Close()
	})
	return repo
}

func InsertTestInitData(t *testing.T, repo *Repository) testData {
	t.Helper()
	ctx := context.Background()
	db := repo.TestGetDB()

	var data testData
	for _, org := range []*string{&data.orgA, &data.orgB} {
		err := db.GetContext(ctx, org, "INSERT INTO organization (name, description, type) VALUES ($1, $2, 'LLC') RETURNING id",
			gofakeit.Company(), gofakeit.Blurb())
		require.NoError(t, err)
	}

	for i, emp := range []*models.Employee{&data.ownerA, &data.ownerB} {
		username := gofakeit.Username() + strconv.Itoa(i)
		err := db.GetContext(ctx, &emp.Id, "INSERT INTO employee (username, first_name, last_name) VALUES ($1, $2, $3) RETURNING id",
			username, gofakeit.FirstName(), gofakeit.LastName())
		require.NoError(t, err)
		emp.Username = username
	}

	_, err := db.ExecContext(ctx, "INSERT INTO organization_responsible (organization_id, user_id) VALUES ($1, $2), ($3, $4)",
		data.orgA, data.ownerA.Id, data.orgB, data.ownerB.Id)
	require.NoError(t, err)

	return data
}

func createTestTender(t *testing.T, repo *Repository, data testData) models.Tender {
	t.Helper()
	tender, err := repo.CreateTender(context.Background(), models.Tender{
		OrganizationId: data.orgA,
		CreatorId:      data.ownerA.Id,
		ServiceType:    models.STConstruction,
		Name:           gofakeit.BuzzWord(),
		Description:    gofakeit.Blurb(),
	})
	require.NoError(t, err)
	return tender
}

func historyVersions(t *testing.T, repo *Repository, table, id string) []int {
	t.Helper()
	versions := []int{}
	err := repo.TestGetDB().SelectContext(context.Background(), &versions,
		"SELECT version FROM "+table+" WHERE original_id = $1 ORDER BY version", id)
	require.NoError(t, err)
	return versions
}

func TestIntegrationIdentity(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()

	employee, err := repo.EmployeeByUsername(ctx, data.ownerA.Username, true)
	require.NoError(t, err)
	assert.Equal(t, data.ownerA.Id, employee.Id)
	assert.Equal(t, []string{data.orgA}, employee.OrganizationIds)

	employee, err = repo.EmployeeByID(ctx, data.ownerB.Id, false)
	require.NoError(t, err)
	assert.Nil(t, employee.OrganizationIds)

	ok, err := repo.OrganizationExists(ctx, data.orgB)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := repo.ResponsibleCount(ctx, data.orgA)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIntegrationVersionMonotonicity(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()
	tender := createTestTender(t, repo, data)

	const edits = 4
	for i := 0; i < edits; i++ {
		name := gofakeit.BS()
		edited, err := repo.EditTender(ctx, tender.Id, models.TenderChanges{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, i+2, edited.Version)
		assert.Equal(t, name, edited.Name)
		assert.Equal(t, tender.Status, edited.Status)
		assert.Equal(t, tender.OrganizationId, edited.OrganizationId)
	}

	assert.Equal(t, []int{1, 2, 3, 4}, historyVersions(t, repo, "tender", tender.Id))

	first, err := repo.TenderVersion(ctx, tender.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, tender.Id, first.Id)
	assert.Equal(t, tender.Name, first.Name)
	assert.Equal(t, tender.Description, first.Description)

	_, err = repo.TenderVersion(ctx, tender.Id, edits+1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIntegrationEditMissing(t *testing.T) {
	repo := OpenTestRepo(t)
	InsertTestInitData(t, repo)

	name := "X"
	_, err := repo.EditTender(context.Background(), "00000000-0000-0000-0000-000000000000", models.TenderChanges{Name: &name})
	assert.ErrorIs(t, err, models.ErrNoTender)

	var rows int
	require.NoError(t, repo.TestGetDB().Get(&rows, "SELECT COUNT(*) FROM tender"))
	assert.Zero(t, rows)
}

func TestIntegrationRollback(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()
	tender := createTestTender(t, repo, data)

	f2, f3 := "second", "third"
	_, err := repo.EditTender(ctx, tender.Id, models.TenderChanges{Name: &f2})
	require.NoError(t, err)
	_, err = repo.EditTender(ctx, tender.Id, models.TenderChanges{Name: &f3})
	require.NoError(t, err)

	rolled, err := repo.RollbackTender(ctx, tender.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, rolled.Version)
	assert.Equal(t, tender.Name, rolled.Name)

	v3, err := repo.TenderVersion(ctx, tender.Id, 3)
	require.NoError(t, err)
	assert.Equal(t, f3, v3.Name)

	v2, err := repo.TenderVersion(ctx, tender.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, f2, v2.Name)

	again, err := repo.RollbackTender(ctx, tender.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Version)
	assert.Equal(t, []int{1, 2, 3, 4}, historyVersions(t, repo, "tender", tender.Id))

	_, err = repo.RollbackTender(ctx, tender.Id, 9)
	assert.ErrorIs(t, err, models.ErrNoVersion)
}

func TestIntegrationConcurrentEdits(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()
	tender := createTestTender(t, repo, data)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "edit " + strconv.Itoa(i)
			_, err := repo.EditTender(ctx, tender.Id, models.TenderChanges{Name: &name})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	current, err := repo.TenderByID(ctx, tender.Id)
	require.NoError(t, err)
	assert.Equal(t, workers+1, current.Version)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, historyVersions(t, repo, "tender", tender.Id))
}

func TestIntegrationVisibility(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()

	published := createTestTender(t, repo, data)
	_, err := repo.SetTenderStatus(ctx, published.Id, models.TenderPublished)
	require.NoError(t, err)
	name := "edited"
	_, err = repo.EditTender(ctx, published.Id, models.TenderChanges{Name: &name})
	require.NoError(t, err)

	createTestTender(t, repo, data)
	canceled := createTestTender(t, repo, data)
	_, err = repo.SetTenderStatus(ctx, canceled.Id, models.TenderCanceled)
	require.NoError(t, err)

	tenders, err := repo.PublishedTenders(ctx, nil, models.Page{Limit: 100})
	require.NoError(t, err)
	require.Len(t, tenders, 1)
	assert.Equal(t, published.Id, tenders[0].Id)
	assert.Equal(t, 2, tenders[0].Version)

	tenders, err = repo.PublishedTenders(ctx, []models.ServiceType{models.STDelivery}, models.Page{Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, tenders)

	tenders, err = repo.PublishedTenders(ctx, nil, models.Page{Limit: 100, Offset: 1})
	require.NoError(t, err)
	assert.Empty(t, tenders)

	mine, err := repo.TendersByCreator(ctx, data.ownerA.Id, models.Page{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	bid, err := repo.CreateBid(ctx, models.Bid{
		TenderId:  published.Id,
		Author:    models.OrganizationAuthor{OrganizationId: data.orgB},
		CreatorId: data.ownerB.Id,
		Name:      gofakeit.BS(),
	})
	require.NoError(t, err)

	bids, err := repo.PublishedBidsByTender(ctx, published.Id, models.Page{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, bids)

	_, err = repo.SetBidStatus(ctx, bid.Id, models.BidPublished)
	require.NoError(t, err)

	rival, err := repo.CreateBid(ctx, models.Bid{
		TenderId:  tender.Id,
		Author:    models.OrganizationAuthor{OrganizationId: data.orgB},
		CreatorId: data.ownerB.Id,
		Name:      "rival",
	})
	require.NoError(t, err)
	_, err = repo.SetBidStatus(ctx, rival.Id, models.BidPublished)
	require.NoError(t, err)
	bids, err = repo.PublishedBidsByTender(ctx, published.Id, models.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, models.OrganizationAuthor{OrganizationId: data.orgB}, bids[0].Author)
}

func TestIntegrationBidLifecycle(t *testing.T) {
	repo := OpenTestRepo(t)
	data := InsertTestInitData(t, repo)
	ctx := context.Background()
	tender := createTestTender(t, repo, data)

	bid, err := repo.CreateBid(ctx, models.Bid{
		TenderId:  tender.Id,
		Author:    models.UserAuthor{EmployeeId: data.ownerB.Id},
		CreatorId: data.ownerB.Id,
		Name:      "first",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BidCreated, bid.Status)

	second := "second"
	edited, err := repo.EditBid(ctx, bid.Id, models.BidChanges{Name: &second})
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Version)

	rolled, err := repo.RollbackBid(ctx, bid.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, rolled.Version)
	assert.Equal(t, "first", rolled.Name)
	assert.Equal(t, bid.Author, rolled.Author)

	old, err := repo.BidVersion(ctx, bid.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, bid.Id, old.Id)
	assert.Equal(t, second, old.Name)

	mine, err := repo.BidsByCreator(ctx, data.ownerB.Id, models.DefaultPage())
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = repo.AddFeedback(ctx, models.Feedback{BidId: bid.Id, Message: gofakeit.Sentence(5), CreatorId: data.ownerA.Id})
	require.NoError(t, err)
	_, err = repo.AddFeedback(ctx, models.Feedback{BidId: bid.Id, Message: "latest", CreatorId: data.ownerA.Id})
	require.NoError(t, err)

	feedback, err := repo.FeedbackByAuthor(ctx, models.UserAuthor{EmployeeId: data.ownerB.Id}, models.DefaultPage())
	require.NoError(t, err)
	require.Len(t, feedback, 2)
	assert.Equal(t, "latest", feedback[0].Message)

	_, err = repo.SetBidStatus(ctx, bid.Id, models.BidPublished)
	require.NoError(t, err)

	rival, err := repo.CreateBid(ctx, models.Bid{
		TenderId:  tender.Id,
		Author:    models.OrganizationAuthor{OrganizationId: data.orgB},
		CreatorId: data.ownerB.Id,
		Name:      "rival",
	})
	require.NoError(t, err)
	_, err = repo.SetBidStatus(ctx, rival.Id, models.BidPublished)
	require.NoError(t, err)

	approveAny := func(tally models.DecisionTally) models.DecisionOutcome {
		if tally.Approved >= 1 {
			return models.DecisionOutcome{BidStatus: models.BidApproved, CloseTender: true}
		}
		return models.DecisionOutcome{}
	}
	_, err = repo.SubmitDecision(ctx, models.BidDecision{BidId: bid.Id, EmployeeId: data.ownerA.Id, Decision: models.DecisionApproved}, data.orgA, approveAny)
	assert.ErrorIs(t, err, models.ErrTenderClosed, "decisions wait for the tender to be published")

	_, err = repo.SetTenderStatus(ctx, tender.Id, models.TenderPublished)
	require.NoError(t, err)

	decided, err := repo.SubmitDecision(ctx, models.BidDecision{BidId: bid.Id, EmployeeId: data.ownerA.Id, Decision: models.DecisionApproved}, data.orgA, approveAny)
	require.NoError(t, err)
	assert.Equal(t, models.BidApproved, decided.Status)

	closed, err := repo.TenderByID(ctx, tender.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TenderClosed, closed.Status)

	_, err = repo.SubmitDecision(ctx, models.BidDecision{BidId: bid.Id, EmployeeId: data.ownerA.Id, Decision: models.DecisionRejected}, data.orgA, approveAny)
	assert.ErrorIs(t, err, models.ErrBidNotPublished)

	_, err = repo.SubmitDecision(ctx, models.BidDecision{BidId: rival.Id, EmployeeId: data.ownerA.Id, Decision: models.DecisionApproved}, data.orgA, approveAny)
	assert.ErrorIs(t, err, models.ErrTenderClosed)
	unchanged, err := repo.BidByID(ctx, rival.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BidPublished, unchanged.Status)
}
