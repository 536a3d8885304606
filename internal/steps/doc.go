// Package steps provides the built-in publishing steps: reading markdown
// content, copying resources, generating HTML, feeds and a sitemap, and
// deploying the output folder to a git remote.
//
// Steps that touch many files fan out with errgroup, one scoped branch per
// file, and apply their results to the generation context serially once
// every branch has finished.
package steps
