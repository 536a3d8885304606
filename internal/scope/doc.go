// Package scope carries "what is currently being processed" through a call
// tree without threading it through every function signature.
//
// Values live in the context.Context chain. Entering a scope derives a new
// context for the body; the caller's context is never modified, so the
// previous value is in effect again as soon as the body returns, whether it
// succeeded, failed or panicked. Concurrent branches spawned from a scoped
// context start from the value active at spawn time, and anything a branch
// derives stays local to that branch.
//
//	err := scope.Run(ctx, scope.At("posts/first"), func(ctx context.Context) error {
//		item, _ := scope.Current(ctx)
//		return render(ctx, item.Path)
//	})
package scope
