package logctx

import (
	"context"
	"segmentd/internal/global"
	"slices"
	"sync"
	"testing"
)

func TestTagHelpers(t *testing.T) {
	base := logCtxWith(global.NSDaemon, global.NSmProc)

	tests := []struct {
		name string
		ctx  context.Context
		want []string
	}{
		{"empty context", context.Background(), []string{}},
		{"wrong type stored", context.WithValue(context.Background(), global.LogTagsKey, 7), []string{}},
		{"append", AppendCtxTag(base, global.NSWorker), []string{global.NSDaemon, global.NSmProc, global.NSWorker}},
		{"remove", RemoveLastCtxTag(base), []string{global.NSDaemon}},
		{"remove on empty", RemoveLastCtxTag(context.Background()), []string{}},
		{"overwrite", OverwriteCtxTag(base, []string{global.NSUpload}), []string{global.NSUpload}},
		{"overwrite with nil", OverwriteCtxTag(base, nil), []string{}},
		{"append after remove", AppendCtxTag(RemoveLastCtxTag(base), global.NSmInput), []string{global.NSDaemon, global.NSmInput}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetTagList(tt.ctx)
			if got == nil || !slices.Equal(got, tt.want) {
				t.Errorf("tags = %v, want %v", got, tt.want)
			}
		})
	}

	// None of the derivations above may touch the parent
	if got := GetTagList(base); !slices.Equal(got, []string{global.NSDaemon, global.NSmProc}) {
		t.Errorf("parent tags changed: %v", got)
	}
}

func logCtxWith(tags ...string) (ctx context.Context) {
	ctx = context.Background()
	for _, tag := range tags {
		ctx = AppendCtxTag(ctx, tag)
	}
	return
}

func TestTagHelpers_NoSharedBacking(t *testing.T) {
	parent := logCtxWith(global.NSDaemon)

	// Siblings appended from one parent must not overwrite each other
	left := AppendCtxTag(parent, "0")
	right := AppendCtxTag(parent, "1")
	if GetTagList(left)[1] != "0" || GetTagList(right)[1] != "1" {
		t.Fatalf("siblings share storage: %v %v", GetTagList(left), GetTagList(right))
	}

	copied := GetTagList(parent)
	copied[0] = "mutated"
	if GetTagList(parent)[0] != global.NSDaemon {
		t.Error("returned slice aliases context storage")
	}

	list := []string{global.NSUpload}
	overwritten := OverwriteCtxTag(parent, list)
	list[0] = "mutated"
	if GetTagList(overwritten)[0] != global.NSUpload {
		t.Error("overwrite kept caller's slice")
	}
}

func TestTagHelpers_Concurrent(t *testing.T) {
	parent := logCtxWith(global.NSDaemon, global.NSmProc)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx := AppendCtxTag(parent, global.NSWorker)
			ctx = RemoveLastCtxTag(ctx)
			ctx = AppendCtxTag(ctx, "x")
			if tags := GetTagList(ctx); len(tags) != 3 || tags[2] != "x" {
				t.Errorf("goroutine %d tags = %v", id, tags)
			}
		}(i)
	}
	wg.Wait()

	if got := GetTagList(parent); len(got) != 2 {
		t.Errorf("parent tags changed: %v", got)
	}
}
