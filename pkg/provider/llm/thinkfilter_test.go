package llm

import "testing"

// run feeds fragments through a fresh filter and returns the concatenated
// output including the end-of-stream flush.
func run(fragments ...string) string {
	var f ThinkFilter
	var out string
	for _, frag := range fragments {
		out += f.Filter(frag)
	}
	return out + f.Flush()
}

func TestThinkFilter_NoTags(t *testing.T) {
	if got := run("hello", " world"); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_SingleChunkSpan(t *testing.T) {
	if got := run("a<think>secret</think>b"); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_SpanAcrossChunks(t *testing.T) {
	if got := run("before<think>hid", "den reasoning", "</think>after"); got != "beforeafter" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_TagSplitAcrossChunks(t *testing.T) {
	if got := run("a<thi", "nk>x</th", "ink>b"); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_PartialTagIsLiteral(t *testing.T) {
	// "<thin" never completes into a tag; it must surface at flush.
	if got := run("score a<thin"); got != "score a<thin" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_AngleBracketText(t *testing.T) {
	if got := run("x < y and y > z"); got != "x < y and y > z" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_UnterminatedSpanDropped(t *testing.T) {
	if got := run("visible<think>never closed"); got != "visible" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_MultipleSpans(t *testing.T) {
	if got := run("a<think>1</think>b<think>2</think>c"); got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestThinkFilter_Reset(t *testing.T) {
	var f ThinkFilter
	f.Filter("x<think>open")
	f.Reset()
	if got := f.Filter("clean") + f.Flush(); got != "clean" {
		t.Errorf("got %q", got)
	}
}
