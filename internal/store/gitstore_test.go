package store_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/notesync/internal/gitx"
	"github.com/skaphos/notesync/internal/model"
	"github.com/skaphos/notesync/internal/store"
)

type mockRunner struct {
	responses map[string]mockResponse
}

type mockResponse struct {
	out string
	err error
}

func (m *mockRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	return m.RunEnv(ctx, dir, nil, args...)
}

func (m *mockRunner) RunEnv(_ context.Context, dir string, _ []string, args ...string) (string, error) {
	key := dir + ":" + strings.Join(args, " ")
	if resp, ok := m.responses[key]; ok {
		return resp.out, resp.err
	}
	return "", errors.New("unexpected call: " + key)
}

var _ = Describe("GitStore", func() {
	It("opens a valid repository", func() {
		runner := &mockRunner{responses: map[string]mockResponse{
			"/vault:rev-parse --is-inside-work-tree": {out: "true"},
		}}
		h, err := store.NewGitStore(runner).Open(context.Background(), "/vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Path).To(Equal("/vault"))
	})

	It("refuses to open a plain directory", func() {
		runner := &mockRunner{responses: map[string]mockResponse{
			"/plain:rev-parse --is-inside-work-tree": {err: errors.New("fatal: not a git repository")},
		}}
		_, err := store.NewGitStore(runner).Open(context.Background(), "/plain")
		Expect(err).To(MatchError(gitx.ErrNotARepository))
	})

	It("reports the tracked remote URL", func() {
		runner := &mockRunner{responses: map[string]mockResponse{
			"/vault:remote get-url origin": {out: "git@github.com:me/notes.git"},
		}}
		s := store.NewGitStore(runner)
		url, err := s.RemoteURL(context.Background(), store.Handle{Path: "/vault"})
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("git@github.com:me/notes.git"))
	})

	It("honors a custom remote name", func() {
		runner := &mockRunner{responses: map[string]mockResponse{
			"/vault:rev-parse --verify --quiet refs/remotes/backup/main": {out: "rev1"},
		}}
		s := store.NewGitStore(runner)
		s.Remote = "backup"
		rev, branch, err := s.RemoteBranchRevision(context.Background(), store.Handle{Path: "/vault"}, []string{"main", "master"})
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(Equal("main"))
		Expect(rev).To(Equal(model.RevisionID("rev1")))
	})
})
