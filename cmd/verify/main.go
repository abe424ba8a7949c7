// Command verify lints the knowledge taxonomy file: it runs the same
// validation the server applies at boot, plus consistency checks that are
// warnings rather than load failures. Intended for CI before deploying a
// taxonomy change.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
)

var taxonomyFlag = flag.String("taxonomy", "taxonomy.yaml", "Path to the taxonomy YAML file")

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	flag.Parse()

	fmt.Println("🔍 Knowledge Taxonomy Verification")
	fmt.Println("==================================")

	idx, err := taxonomy.LoadFile(*taxonomyFlag)
	if err != nil {
		fmt.Printf("❌ load: %v\n", err)
		os.Exit(1)
	}

	results := []verifyResult{
		verifyPointCounts(idx),
		verifyKeywordOverlap(idx),
		verifyEmptySyntheticDocs(idx),
	}

	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0
	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)
	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifyPointCounts checks every subject actually carries points.
func verifyPointCounts(idx *taxonomy.Index) verifyResult {
	for subject := range idx.Subjects() {
		if len(idx.ForSubject(subject)) == 0 {
			return verifyResult{
				name:    "subject coverage",
				message: fmt.Sprintf("subject %s has no knowledge points", subject),
			}
		}
	}
	return verifyResult{
		name:    "subject coverage",
		passed:  true,
		message: fmt.Sprintf("%d points across %d subjects", idx.Len(), len(idx.Subjects())),
	}
}

// verifyKeywordOverlap flags a keyword shared by points of different
// subjects, which makes subject classification ambiguous.
func verifyKeywordOverlap(idx *taxonomy.Index) verifyResult {
	owners := make(map[string]map[string]struct{})
	for _, kp := range idx.All() {
		for _, kw := range kp.Keywords {
			if owners[kw] == nil {
				owners[kw] = make(map[string]struct{})
			}
			owners[kw][kp.Subject] = struct{}{}
		}
	}

	shared := 0
	for _, subjects := range owners {
		if len(subjects) > 1 {
			shared++
		}
	}
	if shared > 0 {
		return verifyResult{
			name:    "keyword overlap",
			message: fmt.Sprintf("%d keywords are shared across subjects", shared),
		}
	}
	return verifyResult{
		name:    "keyword overlap",
		passed:  true,
		message: "no keyword is shared across subjects",
	}
}

// verifyEmptySyntheticDocs checks every point produces a non-empty document
// for the lexical and semantic matchers.
func verifyEmptySyntheticDocs(idx *taxonomy.Index) verifyResult {
	for _, kp := range idx.All() {
		if kp.SyntheticDocument() == "" {
			return verifyResult{
				name:    "synthetic documents",
				message: fmt.Sprintf("point %s yields an empty document", kp.Path),
			}
		}
	}
	return verifyResult{
		name:    "synthetic documents",
		passed:  true,
		message: "every point yields a non-empty document",
	}
}
