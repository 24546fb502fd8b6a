package testutil

import (
	"github.com/google/uuid"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// RepoFixture creates a checkable repo with a fresh id.
func RepoFixture(owner, name, workflow string, branches ...string) repo.Repo {
	var b []string
	if len(branches) > 0 {
		b = branches
	}

	return repo.Repo{
		ID:       uuid.New(),
		Owner:    owner,
		Name:     name,
		Workflow: workflow,
		Branches: b,
	}
}

// CheckErr builds a check error of the given kind.
func CheckErr(kind aserr.CheckErrorKind) error {
	return &aserr.CheckError{Kind: kind, Err: errFake}
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFake = fakeError("injected failure")
