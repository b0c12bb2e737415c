package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/notesync/internal/credentials"
	"github.com/skaphos/notesync/internal/model"
)

var _ = Describe("Static", func() {
	It("looks up hosts case-insensitively", func() {
		p := credentials.Static{"github.com": {Username: "me", Secret: "tok"}}
		cred, ok, err := p.Get("GitHub.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cred.Username).To(Equal("me"))
	})

	It("reports absence for unknown hosts", func() {
		p := credentials.Static{}
		_, ok, err := p.Get("gitlab.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("FileProvider", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("reads a host entry", func() {
		path := write("credentials.yaml", `
hosts:
  github.com:
    username: me
    secret: tok123
`)
		cred, ok, err := credentials.NewFileProvider(path).Get("github.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cred).To(Equal(model.Credential{Username: "me", Secret: "tok123"}))
	})

	It("resolves secret_file indirection", func() {
		secretPath := write("token", "tok456\n")
		path := write("credentials.yaml", `
hosts:
  gitlab.com:
    username: me
    secret_file: `+secretPath+`
`)
		cred, ok, err := credentials.NewFileProvider(path).Get("gitlab.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cred.Secret).To(Equal("tok456"))
	})

	It("treats a missing file as absence", func() {
		_, ok, err := credentials.NewFileProvider(filepath.Join(dir, "nope.yaml")).Get("github.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("errors on malformed YAML", func() {
		path := write("credentials.yaml", "hosts: [not a map")
		_, _, err := credentials.NewFileProvider(path).Get("github.com")
		Expect(err).To(HaveOccurred())
	})
})
