package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"issuesync/github"
	"issuesync/lock"
	"issuesync/logger"
	"issuesync/models"
)

func init() {
	_ = logger.Initialize("debug")
}

// MockPoster is a mock implementation of github.Poster
type MockPoster struct {
	mock.Mock
}

func (m *MockPoster) PostGraphQL(ctx context.Context, query string) ([]byte, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *MockStore) UpsertIssue(ctx context.Context, rec models.IssueRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockStore) UpdateIssueClosure(ctx context.Context, closure models.IssueClosure) error {
	return m.Called(ctx, closure).Error(0)
}

func (m *MockStore) UpsertComment(ctx context.Context, comment models.Comment) error {
	return m.Called(ctx, comment).Error(0)
}

func (m *MockStore) UpsertPullRequest(ctx context.Context, rec models.PullRecord) error {
	return m.Called(ctx, rec).Error(0)
}

// MockLogos is a mock implementation of LogoSource
type MockLogos struct {
	mock.Mock
}

func (m *MockLogos) ProjectLogo(ctx context.Context, repoURL string) (string, error) {
	args := m.Called(ctx, repoURL)
	return args.String(0), args.Error(1)
}

// MockLocker is a mock implementation of lock.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, token string, ttl time.Duration) (lock.Release, error) {
	args := m.Called(ctx, token, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(lock.Release), args.Error(1)
}

func (m *MockLocker) Close() error {
	return m.Called().Error(0)
}

func search(kind string) func(string) bool {
	return func(doc string) bool { return strings.Contains(doc, kind) }
}

var (
	openDoc = func(doc string) bool {
		return strings.Contains(doc, "is:open no:assignee")
	}
	closedDoc  = search("is:closed")
	commentDoc = search("comments(first: 50)")
	pullDoc    = search("is:pr is:merged")
)

const (
	emptyPage  = `{"data":{"search":{"edges":[],"pageInfo":{"hasNextPage":false}}}}`
	openPage   = `{"data":{"search":{"edges":[{"node":{"title":"Add dark mode","url":"https://github.com/acme/app/issues/4","repository":{"url":"https://github.com/acme/app","owner":null},"labels":{"edges":[{"node":{"name":"spam"}}]}}},{"node":{"title":"no url"}}],"pageInfo":{"hasNextPage":false}}}}`
	closedPage = `{"data":{"search":{"edges":[{"node":{"title":"Fix crash","url":"https://github.com/acme/app/issues/5","body":"","repository":{"url":"https://github.com/acme/app","owner":{"avatarUrl":"https://avatars.example/acme.png"}},"timelineItems":{"edges":[{"node":{"__typename":"ClosedEvent","stateReason":"COMPLETED","closer":{"__typename":"PullRequest","url":"https://github.com/acme/app/pull/9","author":{"login":"dave"}}}}]}}}],"pageInfo":{"hasNextPage":false}}}}`
	commentPage = `{"data":{"search":{"edges":[{"node":{"title":"Add dark mode","url":"https://github.com/acme/app/issues/4","repository":{"url":"https://github.com/acme/app"},"comments":{"edges":[{"node":{"url":"https://github.com/acme/app/issues/4#issuecomment-101","author":null,"body":"please fix"}},{"node":{"author":{"login":"eve"},"body":"no url"}},{"node":{"url":"https://github.com/acme/app/issues/4#issuecomment-102","author":{"login":"bob"},"body":"on it"}}]}}}],"pageInfo":{"hasNextPage":false}}}}`
	pullPage    = `{"data":{"search":{"nodes":[{"__typename":"PullRequest","title":"Fix crash","url":"https://github.com/acme/app/pull/9","merged":true,"mergedBy":{"login":"maintainer"},"timelineItems":{"nodes":[{"__typename":"ConnectedEvent","subject":{"__typename":"Issue","url":"https://github.com/acme/app/issues/5"}}]}}],"pageInfo":{"hasNextPage":false}}}}`
)

func newTestFetcher(source github.Poster, store Store, logos LogoSource, locker lock.Locker) *Fetcher {
	f := New(source, store, logos, locker, Options{
		IssueLabel: "hacktoberfest",
		PRLabel:    "hacktoberfest-accepted",
		MaxPages:   10,
		PageSize:   100,
	})
	clock := time.Date(2023, 10, 1, 13, 5, 0, 0, time.UTC)
	f.now = func() time.Time { return clock }
	f.newRunID = func() string { return "01HCTESTRUN" }
	return f
}

func TestRun(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(openDoc)).Return([]byte(openPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(closedDoc)).Return([]byte(closedPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(func(doc string) bool {
		return commentDoc(doc) && !openDoc(doc)
	})).Return([]byte(commentPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(pullDoc)).Return([]byte(pullPage), nil).Once()

	logos := &MockLogos{}
	logos.On("ProjectLogo", mock.Anything, "https://github.com/acme/app").Return("", errors.New("not found")).Maybe()

	store := &MockStore{}
	store.On("WithTx", mock.Anything).Return(nil).Once()
	store.On("UpsertIssue", mock.Anything, mock.MatchedBy(func(rec models.IssueRecord) bool {
		return rec.URL == "https://github.com/acme/app/issues/4"
	})).Return(nil).Twice()
	store.On("UpdateIssueClosure", mock.Anything, models.IssueClosure{
		IssueID:       "https://github.com/acme/app/issues/5",
		ProjectID:     "https://github.com/acme/app",
		IssueAssignee: "dave",
		IssueLinkedPR: "https://github.com/acme/app/pull/9",
		IssueStatus:   models.StatusClosed,
		ReviewStatus:  "COMPLETED",
		IssueTitle:    "Fix crash",
		ProjectLogo:   "https://avatars.example/acme.png",
	}).Return(nil).Once()
	store.On("UpsertComment", mock.Anything, models.Comment{
		CommentID: "https://github.com/acme/app/issues/4#issuecomment-101",
		IssueID:   "https://github.com/acme/app/issues/4",
		Content:   "please fix",
	}).Return(nil).Once()
	store.On("UpsertComment", mock.Anything, models.Comment{
		CommentID: "https://github.com/acme/app/issues/4#issuecomment-102",
		IssueID:   "https://github.com/acme/app/issues/4",
		Creator:   "bob",
		Content:   "on it",
	}).Return(nil).Once()
	store.On("UpsertPullRequest", mock.Anything, mock.MatchedBy(func(rec models.PullRecord) bool {
		return rec.URL == "https://github.com/acme/app/pull/9" &&
			rec.Merged &&
			rec.MergedBy == "maintainer" &&
			len(rec.ConnectedIssues) == 1
	})).Return(nil).Once()

	f := newTestFetcher(source, store, logos, nil)
	stats, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "01HCTESTRUN", stats.RunID)
	assert.Equal(t, 1, stats.OpenIssues)
	assert.Equal(t, 1, stats.ClosedIssues)
	assert.Equal(t, 1, stats.CommentIssues)
	assert.Equal(t, 2, stats.Comments)
	assert.Equal(t, 1, stats.PullRequests)
	assert.Equal(t, 1, stats.FlaggedRecords)

	source.AssertExpectations(t)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpsertIssue", mock.Anything, mock.MatchedBy(func(rec models.IssueRecord) bool {
		return rec.URL == "https://github.com/acme/app/issues/5"
	}))
	logos.AssertNotCalled(t, "ProjectLogo", mock.Anything, mock.Anything)
}

func TestRunClosedIssueOnlyWritesClosure(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(closedDoc)).Return([]byte(closedPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.Anything).Return([]byte(emptyPage), nil)

	store := &MockStore{}
	store.On("WithTx", mock.Anything).Return(nil).Once()
	store.On("UpdateIssueClosure", mock.Anything, mock.MatchedBy(func(c models.IssueClosure) bool {
		return c.IssueID == "https://github.com/acme/app/issues/5" && c.IssueDescription == ""
	})).Return(nil).Once()

	f := newTestFetcher(source, store, nil, nil)
	stats, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ClosedIssues)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpsertIssue", mock.Anything, mock.Anything)
}

func commentsPage(comments ...string) string {
	return `{"data":{"search":{"edges":[{"node":{"title":"Add dark mode","url":"https://github.com/acme/app/issues/4","repository":{"url":"https://github.com/acme/app","owner":{"avatarUrl":"https://avatars.example/acme.png"}},"comments":{"edges":[` +
		strings.Join(comments, ",") + `]}}}],"pageInfo":{"hasNextPage":false}}}}`
}

func TestRunCommentKeysSurviveDeletedComment(t *testing.T) {
	alice := `{"node":{"url":"https://github.com/acme/app/issues/4#issuecomment-1","author":{"login":"alice"},"body":"first"}}`
	bob := `{"node":{"url":"https://github.com/acme/app/issues/4#issuecomment-2","author":{"login":"bob"},"body":"second"}}`
	carol := `{"node":{"url":"https://github.com/acme/app/issues/4#issuecomment-3","author":{"login":"carol"},"body":"third"}}`

	stored := map[string]models.Comment{}
	for _, page := range []string{commentsPage(alice, bob, carol), commentsPage(alice, carol)} {
		source := &MockPoster{}
		source.On("PostGraphQL", mock.Anything, mock.MatchedBy(func(doc string) bool {
			return commentDoc(doc) && !openDoc(doc)
		})).Return([]byte(page), nil).Once()
		source.On("PostGraphQL", mock.Anything, mock.Anything).Return([]byte(emptyPage), nil)

		store := &MockStore{}
		store.On("WithTx", mock.Anything).Return(nil).Once()
		store.On("UpsertIssue", mock.Anything, mock.Anything).Return(nil).Once()
		store.On("UpsertComment", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			c := args.Get(1).(models.Comment)
			if prev, ok := stored[c.CommentID]; ok {
				assert.Equal(t, prev.Creator, c.Creator, c.CommentID)
				assert.Equal(t, prev.Content, c.Content, c.CommentID)
			}
			stored[c.CommentID] = c
		})

		f := newTestFetcher(source, store, nil, nil)
		_, err := f.Run(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, stored, 3)
	assert.Equal(t, "carol", stored["https://github.com/acme/app/issues/4#issuecomment-3"].Creator)
	assert.Equal(t, "third", stored["https://github.com/acme/app/issues/4#issuecomment-3"].Content)
}

func TestRunLooksUpMissingLogoOnce(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(openDoc)).Return([]byte(openPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.Anything).Return([]byte(emptyPage), nil)

	logos := &MockLogos{}
	logos.On("ProjectLogo", mock.Anything, "https://github.com/acme/app").Return("https://avatars.example/acme.png", nil).Once()

	store := &MockStore{}
	store.On("WithTx", mock.Anything).Return(nil).Once()
	store.On("UpsertIssue", mock.Anything, mock.MatchedBy(func(rec models.IssueRecord) bool {
		return rec.RepositoryAvatar == "https://avatars.example/acme.png"
	})).Return(nil).Once()

	f := newTestFetcher(source, store, logos, nil)
	_, err := f.Run(context.Background())
	require.NoError(t, err)

	logos.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRunSearchFailureWritesNothing(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(openDoc)).Return([]byte(openPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(closedDoc)).
		Return(nil, &github.TransportError{StatusCode: 502}).Once()

	store := &MockStore{}

	f := newTestFetcher(source, store, nil, nil)
	stats, err := f.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, github.ErrTransport)
	store.AssertNotCalled(t, "WithTx", mock.Anything)
}

func TestRunStoreFailure(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.MatchedBy(openDoc)).Return([]byte(openPage), nil).Once()
	source.On("PostGraphQL", mock.Anything, mock.Anything).Return([]byte(emptyPage), nil)

	store := &MockStore{}
	store.On("WithTx", mock.Anything).Return(nil).Once()
	store.On("UpsertIssue", mock.Anything, mock.Anything).Return(errors.New("deadlock")).Once()

	f := newTestFetcher(source, store, nil, nil)
	_, err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "01HCTESTRUN")
	store.AssertExpectations(t)
}

func TestRunSkippedWhenLockHeld(t *testing.T) {
	source := &MockPoster{}
	store := &MockStore{}
	locker := &MockLocker{}
	locker.On("Acquire", mock.Anything, "01HCTESTRUN", 10*time.Minute).Return(nil, lock.ErrHeld).Once()

	f := newTestFetcher(source, store, nil, locker)
	_, err := f.Run(context.Background())
	assert.ErrorIs(t, err, ErrSkipped)
	source.AssertNotCalled(t, "PostGraphQL", mock.Anything, mock.Anything)
}

func TestRunReleasesLock(t *testing.T) {
	source := &MockPoster{}
	source.On("PostGraphQL", mock.Anything, mock.Anything).Return([]byte(emptyPage), nil)
	store := &MockStore{}
	store.On("WithTx", mock.Anything).Return(nil).Once()

	released := false
	locker := &MockLocker{}
	locker.On("Acquire", mock.Anything, "01HCTESTRUN", 10*time.Minute).
		Return(lock.Release(func(context.Context) error { released = true; return nil }), nil).Once()

	f := newTestFetcher(source, store, nil, locker)
	stats, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.OpenIssues)
	assert.True(t, released)
}

func TestBuildQueries(t *testing.T) {
	window := models.HourWindow(time.Date(2023, 10, 1, 12, 30, 0, 0, time.UTC))
	q := BuildQueries(window, "hacktoberfest", "hacktoberfest-accepted")

	span := "2023-10-01T12:00:00Z..2023-10-01T13:00:00Z"
	assert.Equal(t, "label:hacktoberfest is:issue is:open no:assignee created:"+span+" -label:spam -label:invalid", q.OpenIssues.Query)
	assert.Equal(t, "label:hacktoberfest is:issue is:closed updated:"+span+" -label:spam -label:invalid", q.ClosedIssues.Query)
	assert.Equal(t, "label:hacktoberfest is:issue is:open updated:"+span+" -label:spam -label:invalid", q.CommentIssues.Query)
	assert.Equal(t, "label:hacktoberfest-accepted is:pr is:merged merged:"+span+" review:approved -label:spam -label:invalid", q.MergedPulls.Query)
	assert.Equal(t, models.KindPullRequest, q.MergedPulls.Kind)
}

func TestComment(t *testing.T) {
	testCases := []struct {
		name     string
		flat     string
		expected models.Comment
	}{
		{
			name:     "with author",
			flat:     "bob: on it: really",
			expected: models.Comment{CommentID: "u#issuecomment-7", IssueID: "u", Creator: "bob", Content: "on it: really"},
		},
		{
			name:     "deleted author",
			flat:     ": please fix",
			expected: models.Comment{CommentID: "u#issuecomment-7", IssueID: "u", Content: "please fix"},
		},
		{
			name:     "no separator",
			flat:     "orphan",
			expected: models.Comment{CommentID: "u#issuecomment-7", IssueID: "u", Content: "orphan"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Comment("u", "u#issuecomment-7", tc.flat))
		})
	}
}

func TestClosure(t *testing.T) {
	rec := models.IssueRecord{
		URL:        "https://github.com/acme/app/issues/5",
		Repository: "https://github.com/acme/app",
		Assignees:  []string{"carol"},
	}
	rec.Title = "Fix crash"
	rec.Body = "steps to reproduce"
	c := Closure(rec)
	assert.Equal(t, "carol", c.IssueAssignee)
	assert.Equal(t, "Fix crash", c.IssueTitle)
	assert.Equal(t, "steps to reproduce", c.IssueDescription)
	assert.Empty(t, c.IssueLinkedPR)
	assert.Equal(t, models.StatusClosed, c.IssueStatus)
}
