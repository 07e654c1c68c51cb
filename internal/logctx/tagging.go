package logctx

import (
	"context"
	"segmentd/internal/global"
	"slices"
)

// Context tags name the pipeline component emitting a log line (e.g. Collector/Proc/2/Worker).
// Every helper stores a fresh slice so sibling contexts never share a backing array.

func AppendCtxTag(ctx context.Context, newTag string) (newCtx context.Context) {
	newCtx = withTags(ctx, append(GetTagList(ctx), newTag))
	return
}

// Drops the innermost tag, no-op on an empty list
func RemoveLastCtxTag(ctx context.Context) (newCtx context.Context) {
	tags := GetTagList(ctx)
	if len(tags) > 0 {
		tags = tags[:len(tags)-1]
	}
	newCtx = withTags(ctx, tags)
	return
}

func OverwriteCtxTag(ctx context.Context, newList []string) (newCtx context.Context) {
	newCtx = withTags(ctx, slices.Clone(newList))
	return
}

// Copy of the current tags, empty (not nil) when none are set
func GetTagList(ctx context.Context) (tags []string) {
	stored, _ := ctx.Value(global.LogTagsKey).([]string)
	tags = make([]string, len(stored), len(stored)+1)
	copy(tags, stored)
	return
}

func withTags(ctx context.Context, tags []string) context.Context {
	if tags == nil {
		tags = []string{}
	}
	return context.WithValue(ctx, global.LogTagsKey, tags)
}
