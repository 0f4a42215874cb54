package list_test

import (
	"testing"

	"bufftree/internal/list"
)

func verifyList(t *testing.T, l *list.List[int], want []int) {
	t.Helper()
	var got []int
	for cur := l.PeekHead(); cur != nil; cur = cur.GetNext() {
		got = append(got, cur.GetValue())
	}
	if len(got) != len(want) {
		t.Fatalf("lists of unequal size: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lists not equal; got %v, want %v", got, want)
		}
	}
}

func TestEmptyList(t *testing.T) {
	l := list.NewList[int]()
	if l.PeekHead() != nil || l.PeekTail() != nil {
		t.Fatal("bad list initialization")
	}
}

func TestSingletonList(t *testing.T) {
	l := list.NewList[int]()
	l.PushHead(5)
	if l.PeekHead() != l.PeekTail() {
		t.Fatal("head not equal to tail in singleton list")
	}
}

func TestPushHead(t *testing.T) {
	l := list.NewList[int]()
	for _, v := range []int{1, 2, 3, 4, 5} {
		l.PushHead(v)
	}
	if l.PeekHead().GetValue() != 5 {
		t.Fatal("bad peekhead")
	}
	if l.PeekTail().GetValue() != 1 {
		t.Fatal("bad peektail")
	}
	verifyList(t, l, []int{5, 4, 3, 2, 1})
}

func TestPushTail(t *testing.T) {
	l := list.NewList[int]()
	for _, v := range []int{1, 2, 3, 4, 5} {
		l.PushTail(v)
	}
	verifyList(t, l, []int{1, 2, 3, 4, 5})
}

func TestFind(t *testing.T) {
	l := list.NewList[int]()
	for _, v := range []int{1, 2, 3, 4, 5} {
		l.PushHead(v)
	}
	for i := 1; i <= 5; i++ {
		v := l.Find(func(link *list.Link[int]) bool { return link.GetValue() == i })
		if v == nil || v.GetValue() != i {
			t.Fatalf("did not find %d", i)
		}
	}
	if l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 6 }) != nil {
		t.Fatal("found non-existent value")
	}
}

func TestFindEmptyList(t *testing.T) {
	l := list.NewList[int]()
	if l.Find(func(*list.Link[int]) bool { return true }) != nil {
		t.Fatal("found a value in an empty list")
	}
}

func TestMap(t *testing.T) {
	l := list.NewList[int]()
	for _, v := range []int{1, 2, 3, 4, 5} {
		l.PushHead(v)
	}
	l.Map(func(link *list.Link[int]) { link.SetValue(link.GetValue() + 10) })
	verifyList(t, l, []int{15, 14, 13, 12, 11})
}

func TestGetList(t *testing.T) {
	l := list.NewList[int]()
	l.PushHead(1)
	if l.PeekHead().GetList() != l {
		t.Fatal("bad GetList")
	}
}

func TestPopSelfMiddle(t *testing.T) {
	l := list.NewList[int]()
	for _, v := range []int{1, 2, 3, 4, 5} {
		l.PushHead(v)
	}
	v := l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 4 })
	v.PopSelf()
	verifyList(t, l, []int{5, 3, 2, 1})
}

func TestPopSelfUpdatesHeadAndTail(t *testing.T) {
	l := list.NewList[int]()
	l.PushHead(1)
	l.PushHead(2)
	elt1 := l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 1 })
	elt2 := l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 2 })
	elt2.PopSelf()
	if l.PeekHead() != elt1 || l.PeekTail() != elt1 {
		t.Fatal("bad pop, head/tail not updated")
	}
}

func TestLen(t *testing.T) {
	l := list.NewList[int]()
	if l.Len() != 0 {
		t.Fatal("expected empty list")
	}
	l.PushTail(1)
	l.PushTail(2)
	if l.Len() != 2 {
		t.Fatalf("expected len 2, got %d", l.Len())
	}
}
