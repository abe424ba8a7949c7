package taxonomy

import (
	"errors"
	"strings"
	"testing"

	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
)

const validTaxonomy = `
subjects:
  math:
    name: 数学
    categories:
      algebra:
        name: 代数
        points:
          linear_equations:
            name: 一元一次方程
            keywords: [方程, 未知数, 解方程]
            patterns: ['求.*?的值', '解.*?方程']
            difficulty: 2
            importance: 5
            exam_frequency: 0.9
            base_confidence: 0.3
          inequalities:
            name: 一元一次不等式
            keywords: [不等式, 大于, 小于]
            patterns: ['不等式.*?解集']
            negative_patterns: [方程]
            difficulty: 3
            importance: 4
            exam_frequency: 0.7
            base_confidence: 0.3
      geometry:
        name: 几何
        points:
          triangle_area:
            name: 三角形面积
            keywords: [三角形, 面积]
            difficulty: 2
            importance: 4
            exam_frequency: 0.8
            base_confidence: 0.25
  chinese:
    name: 语文
    categories:
      reading:
        name: 阅读理解
        points:
          main_idea:
            name: 中心思想
            keywords: [中心思想, 主旨, 段落大意]
            difficulty: 3
            importance: 4
            exam_frequency: 0.6
            base_confidence: 0.2
`

func loadValid(t *testing.T) *Index {
	t.Helper()
	idx, err := Load([]byte(validTaxonomy))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return idx
}

func TestLoadValid(t *testing.T) {
	idx := loadValid(t)

	if idx.Len() != 4 {
		t.Errorf("Len() = %d, want 4", idx.Len())
	}

	kp, ok := idx.Lookup("math.algebra.linear_equations")
	if !ok {
		t.Fatal("Lookup(math.algebra.linear_equations) not found")
	}
	if kp.Name != "一元一次方程" {
		t.Errorf("Name = %q, want 一元一次方程", kp.Name)
	}
	if kp.Subject != "math" || kp.SubjectName != "数学" {
		t.Errorf("Subject = %q/%q, want math/数学", kp.Subject, kp.SubjectName)
	}
	if len(kp.Patterns) != 2 {
		t.Errorf("len(Patterns) = %d, want 2", len(kp.Patterns))
	}
	if kp.Weight != 1.0 {
		t.Errorf("Weight default = %v, want 1.0", kp.Weight)
	}
}

func TestLookupNotFound(t *testing.T) {
	idx := loadValid(t)

	if _, ok := idx.Lookup("math.algebra.quadratic_equations"); ok {
		t.Error("Lookup() found a point that does not exist")
	}
}

func TestForSubject(t *testing.T) {
	idx := loadValid(t)

	mathPoints := idx.ForSubject("math")
	if len(mathPoints) != 3 {
		t.Errorf("ForSubject(math) = %d points, want 3", len(mathPoints))
	}

	chinesePoints := idx.ForSubject("chinese")
	if len(chinesePoints) != 1 {
		t.Errorf("ForSubject(chinese) = %d points, want 1", len(chinesePoints))
	}

	if len(idx.ForSubject("physics")) != 0 {
		t.Error("ForSubject(physics) should be empty")
	}
}

func TestCanonicalOrder(t *testing.T) {
	idx := loadValid(t)

	all := idx.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Path >= all[i].Path {
			t.Errorf("All() not in canonical order: %q >= %q", all[i-1].Path, all[i].Path)
		}
		if all[i].Ord != i {
			t.Errorf("Ord = %d, want %d", all[i].Ord, i)
		}
	}
}

func TestSubjectName(t *testing.T) {
	idx := loadValid(t)

	if got := idx.SubjectName("math"); got != "数学" {
		t.Errorf("SubjectName(math) = %q, want 数学", got)
	}
	if got := idx.SubjectName("unknown"); got != "unknown" {
		t.Errorf("SubjectName(unknown) = %q, want fallback to key", got)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "empty taxonomy",
			yaml: `subjects: {}`,
		},
		{
			name: "missing point name",
			yaml: `
subjects:
  math:
    name: 数学
    categories:
      algebra:
        name: 代数
        points:
          p1:
            keywords: [方程]
            difficulty: 2
            importance: 3
`,
		},
		{
			name: "no keywords or patterns",
			yaml: `
subjects:
  math:
    name: 数学
    categories:
      algebra:
        name: 代数
        points:
          p1:
            name: 空知识点
            difficulty: 2
            importance: 3
`,
		},
		{
			name: "difficulty out of range",
			yaml: `
subjects:
  math:
    name: 数学
    categories:
      algebra:
        name: 代数
        points:
          p1:
            name: 知识点
            keywords: [方程]
            difficulty: 9
            importance: 3
`,
		},
		{
			name: "invalid regex pattern",
			yaml: `
subjects:
  math:
    name: 数学
    categories:
      algebra:
        name: 代数
        points:
          p1:
            name: 知识点
            keywords: [方程]
            patterns: ['求[的值']
            difficulty: 2
            importance: 3
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Load() accepted malformed taxonomy")
			}
			if !errors.Is(err, domerrors.ErrTaxonomyInvalid) {
				t.Errorf("error %v should wrap ErrTaxonomyInvalid", err)
			}
		})
	}
}

func TestPatternLiterals(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{`求.*?的值`, "求 的值"},
		{`解.*?方程`, "解 方程"},
		{`plain`, "plain"},
		{`(a|b)c`, "a b c"},
		{`\d+个`, "个"},
	}

	for _, tt := range tests {
		if got := PatternLiterals(tt.pattern); got != tt.want {
			t.Errorf("PatternLiterals(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestSyntheticDocument(t *testing.T) {
	idx := loadValid(t)

	kp, _ := idx.Lookup("math.algebra.linear_equations")
	doc := kp.SyntheticDocument()

	for _, want := range []string{"一元一次方程", "方程", "未知数", "求", "的值"} {
		if !strings.Contains(doc, want) {
			t.Errorf("SyntheticDocument() = %q, missing %q", doc, want)
		}
	}
}
