package di

import "testing"

func TestRegisterAndGet(t *testing.T) {
	c := NewContainer()

	c.Register("store", "实例")

	if got := c.Get("store"); got != "实例" {
		t.Errorf("取出的服务不正确: %v", got)
	}
	if c.Get("missing") != nil {
		t.Error("未注册的服务应该返回 nil")
	}
	if !c.Has("store") || c.Has("missing") {
		t.Error("Has 判断不正确")
	}
}

func TestLookupTypeMismatch(t *testing.T) {
	c := NewContainer()
	c.Register("count", 42)

	if v, ok := Lookup[int](c, "count"); !ok || v != 42 {
		t.Errorf("类型匹配时应该成功: %v %v", v, ok)
	}
	if _, ok := Lookup[string](c, "count"); ok {
		t.Error("类型不匹配时应该返回 false")
	}
	if _, ok := Lookup[int](c, "missing"); ok {
		t.Error("未注册的服务应该返回 false")
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := NewContainer()
	c.Register("a", 1)
	c.Register("b", 2)

	c.Remove("a")
	if c.Has("a") {
		t.Error("Remove 后服务不应存在")
	}

	c.Clear()
	if len(c.GetNames()) != 0 {
		t.Errorf("Clear 后应该没有服务: %v", c.GetNames())
	}
}
