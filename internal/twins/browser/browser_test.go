package browser

import "testing"

func sampleGraph() []Node {
	return []Node{
		{NodeID: "home", URL: "https://intranet/home", Title: "Home", Excerpt: "Welcome to the intranet portal", Affordances: []string{"docs"}, Next: map[string]string{"docs": "docs"}},
		{NodeID: "docs", URL: "https://intranet/docs", Title: "Docs Index", Excerpt: "Runbooks and onboarding guides", Affordances: []string{"home"}, Next: map[string]string{"home": "home"}},
	}
}

func TestClickAndBack(t *testing.T) {
	tw := New(sampleGraph(), "home")
	read, err := tw.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if read["node_id"].(string) != "home" {
		t.Fatalf("node_id = %v, want home", read["node_id"])
	}

	clicked, err := tw.Click("docs")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if clicked["node_id"].(string) != "docs" {
		t.Fatalf("node_id after click = %v, want docs", clicked["node_id"])
	}

	back, err := tw.Back()
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if back["node_id"].(string) != "home" {
		t.Fatalf("node_id after back = %v, want home", back["node_id"])
	}
}

func TestClickUnknownAffordance(t *testing.T) {
	tw := New(sampleGraph(), "home")
	if _, err := tw.Click("nonexistent"); err == nil {
		t.Fatal("expected invalid_affordance error")
	}
}

func TestBackWithEmptyHistory(t *testing.T) {
	tw := New(sampleGraph(), "home")
	if _, err := tw.Back(); err == nil {
		t.Fatal("expected no_history error")
	}
}

func TestFindRanksByTitleThenExcerpt(t *testing.T) {
	tw := New(sampleGraph(), "home")
	results := tw.Find("docs", 5)
	if len(results) == 0 || results[0]["node_id"].(string) != "docs" {
		t.Fatalf("expected docs node ranked first, got %v", results)
	}
}
