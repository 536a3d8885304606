package config

import (
	"errors"
	"io/fs"
	"os"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

const exampleConfig = `site:
  name: My Site
  description: A description of my site
  url: https://example.com
  language: en

content:
  dir: Content
  resources_dir: Resources
  sort_items: date

feeds:
  rss:
    enabled: true
    path: feed.rss
    max_items: 50
  podcast:
    enabled: false
    section: episodes
    author: Jane Doe
    owner_name: Jane Doe
    owner_email: jane@example.com
    category: Technology

sitemap:
  enabled: true

# deploy:
#   git:
#     remote: https://github.com/example/example.github.io.git
#     branch: main
#     token: ${GIT_TOKEN}

# notify:
#   nats:
#     url: nats://localhost:4222

history:
  enabled: true
`

// Init writes an example configuration to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat configuration").Build()
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write configuration").
			WithContext("path", path).
			Build()
	}
	return nil
}
