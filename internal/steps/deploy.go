package steps

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/retry"
	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// GitDeployDir is the working repository below the internal folder.
const GitDeployDir = "GitDeploy"

const remoteName = "origin"

// GitDeployOptions configures DeployToGit.
type GitDeployOptions struct {
	Remote      string
	Branch      string
	AuthorName  string
	AuthorEmail string
	// Message is a text/template receiving .Site and .Time.
	Message string
	// Token enables HTTP basic auth with the user "token".
	Token string
	Retry retry.Policy
}

type commitMessage struct {
	Site string
	Time string
}

// DeployToGit commits the output folder to Branch of Remote and pushes it.
// The branch is replaced by the output on every deploy; an unchanged output
// creates no commit.
func DeployToGit(opts GitDeployOptions) step.Step {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Message == "" {
		opts.Message = "Publish {{.Site}}"
	}
	return step.Deployment("Deploy to git remote", func(ctx context.Context, gc *site.Context) error {
		tmpl, err := template.New("message").Option("missingkey=error").Parse(opts.Message)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid commit message template").Build()
		}
		var msg bytes.Buffer
		if err := tmpl.Execute(&msg, commitMessage{Site: gc.Site.Name, Time: time.Now().UTC().Format(time.RFC3339)}); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid commit message template").Build()
		}

		d := &gitDeployer{
			opts: opts,
			dir:  filepath.Join(gc.Folders.Internal, GitDeployDir),
			log:  scope.Logger(ctx, nil),
		}
		if opts.Token != "" {
			d.auth = &http.BasicAuth{Username: "token", Password: opts.Token}
		}
		return d.deploy(ctx, gc.Folders.Output, msg.String())
	})
}

type gitDeployer struct {
	opts GitDeployOptions
	dir  string
	auth transport.AuthMethod
	log  *slog.Logger
}

func (d *gitDeployer) deploy(ctx context.Context, output, message string) error {
	repo, err := d.open()
	if err != nil {
		return err
	}
	if err := d.fetch(ctx, repo); err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return d.fail(err, "failed to open worktree")
	}
	if err := d.checkout(repo, wt); err != nil {
		return err
	}
	if err := replaceContents(d.dir, output); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to copy output into deploy repository").
			WithContext("path", d.dir).
			Build()
	}

	committed, err := d.commit(wt, message)
	if err != nil {
		return err
	}
	if !committed {
		d.log.Info("Output unchanged, nothing to deploy", logfields.Branch(d.opts.Branch))
	}
	return d.opts.Retry.Do(ctx, "git push", func(ctx context.Context) error {
		return d.push(ctx, repo)
	})
}

// open returns the deploy repository, creating it on first use, with its
// origin remote pointing at Remote.
func (d *gitDeployer) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(d.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return nil, d.fail(err, "failed to create deploy repository")
		}
		repo, err = git.PlainInit(d.dir, false)
	}
	if err != nil {
		return nil, d.fail(err, "failed to open deploy repository")
	}

	remote, err := repo.Remote(remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
	case err != nil:
		return nil, d.fail(err, "failed to read remote")
	case len(remote.Config().URLs) == 1 && remote.Config().URLs[0] == d.opts.Remote:
		return repo, nil
	default:
		if err := repo.DeleteRemote(remoteName); err != nil {
			return nil, d.fail(err, "failed to replace remote")
		}
	}
	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{Name: remoteName, URLs: []string{d.opts.Remote}}); err != nil {
		return nil, d.fail(err, "failed to add remote")
	}
	return repo, nil
}

func (d *gitDeployer) fetch(ctx context.Context, repo *git.Repository) error {
	spec := gitcfg.RefSpec("+refs/heads/" + d.opts.Branch + ":refs/remotes/" + remoteName + "/" + d.opts.Branch)
	return d.opts.Retry.Do(ctx, "git fetch", func(ctx context.Context) error {
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: remoteName,
			RefSpecs:   []gitcfg.RefSpec{spec},
			Auth:       d.auth,
			Tags:       git.NoTags,
			Force:      true,
		})
		switch {
		case err == nil,
			errors.Is(err, git.NoErrAlreadyUpToDate),
			errors.Is(err, transport.ErrEmptyRemoteRepository),
			errors.Is(err, git.NoMatchingRefSpecError{}):
			return nil
		}
		return d.classify(err, "failed to fetch deploy branch")
	})
}

// checkout points the worktree at the deploy branch: the fetched remote
// branch when there is one, otherwise the local branch, otherwise a new
// branch with no history.
func (d *gitDeployer) checkout(repo *git.Repository, wt *git.Worktree) error {
	local := plumbing.NewBranchReferenceName(d.opts.Branch)

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, d.opts.Branch), true)
	if err == nil {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(local, remoteRef.Hash())); err != nil {
			return d.fail(err, "failed to update deploy branch")
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return d.fail(err, "failed to read remote branch")
	}

	if _, err := repo.Reference(local, true); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: local, Force: true}); err != nil {
			return d.fail(err, "failed to check out deploy branch")
		}
		return nil
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, local)); err != nil {
		return d.fail(err, "failed to create deploy branch")
	}
	return nil
}

// commit stages every change of the worktree and commits it. It reports
// false when there was nothing to commit.
func (d *gitDeployer) commit(wt *git.Worktree, message string) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, d.fail(err, "failed to read worktree status")
	}
	if status.IsClean() {
		return false, nil
	}
	for path, s := range status {
		switch s.Worktree {
		case git.Unmodified:
		case git.Deleted:
			if _, err := wt.Remove(path); err != nil {
				return false, d.fail(err, "failed to stage removal")
			}
		default:
			if _, err := wt.Add(path); err != nil {
				return false, d.fail(err, "failed to stage file")
			}
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  d.opts.AuthorName,
			Email: d.opts.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, d.fail(err, "failed to commit output")
	}
	d.log.Info("Committed output", logfields.Branch(d.opts.Branch), logfields.Commit(hash.String()))
	return true, nil
}

func (d *gitDeployer) push(ctx context.Context, repo *git.Repository) error {
	ref := "refs/heads/" + d.opts.Branch
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitcfg.RefSpec{gitcfg.RefSpec("+" + ref + ":" + ref)},
		Auth:       d.auth,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return d.classify(err, "failed to push deploy branch")
}

// classify marks authentication failures as needing user action and
// everything else from the remote as retryable.
func (d *gitDeployer) classify(err error, message string) error {
	b := ferrors.WrapError(err, ferrors.CategoryDeploy, message).
		WithContext("remote", d.opts.Remote).
		WithContext("branch", d.opts.Branch)
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return b.UserAction().Build()
	}
	return b.Retryable().Build()
}

func (d *gitDeployer) fail(err error, message string) error {
	return ferrors.WrapError(err, ferrors.CategoryDeploy, message).
		WithContext("path", d.dir).
		Build()
}

// replaceContents empties dir, keeping .git, and copies src into it.
func replaceContents(dir, src string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == git.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return os.CopyFS(dir, os.DirFS(src))
}
