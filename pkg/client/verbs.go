package client

import (
	"context"

	"github.com/fetchkit/go-apirequest/pkg/request"
)

// Get executes the call with the GET verb, the payload is sent in the query string.
func (c Client) Get(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbGet))
}

// Head executes the call with the HEAD verb, the payload is sent in the query string.
func (c Client) Head(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbHead))
}

// Post executes the call with the POST verb.
func (c Client) Post(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbPost))
}

// Put executes the call with the PUT verb.
func (c Client) Put(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbPut))
}

// Delete executes the call with the DELETE verb.
func (c Client) Delete(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbDelete))
}

// Options executes the call with the OPTIONS verb.
func (c Client) Options(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbOptions))
}

// Patch executes the call with the PATCH verb.
func (c Client) Patch(ctx context.Context, opts request.Options) Outcome {
	return c.Execute(ctx, opts.WithVerb(request.VerbPatch))
}
