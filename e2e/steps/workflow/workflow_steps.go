package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path, actor string, body any) error
	GET(path, actor string) error
	PATCH(path, actor string, body any) error
	GetLastResponseStatus() int
	GetResponseField(path string) (any, error)
	Remember(key, value string)
	Recall(key string) string
}

// RegisterSteps registers declaration lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &workflowSteps{tc: tc}

	ctx.Step(`^the citizen submits a birth declaration for "([^"]*)"$`, steps.submitDeclaration)
	ctx.Step(`^the citizen submits a birth declaration without "([^"]*)"$`, steps.submitDeclarationWithout)
	ctx.Step(`^the (citizen|agent|admin) reads the declaration$`, steps.readDeclaration)
	ctx.Step(`^the (agent|admin|citizen) sets the declaration status to "([^"]*)"$`, steps.transition)
	ctx.Step(`^the (agent|admin) sets the declaration status to "([^"]*)" with comment "([^"]*)"$`, steps.transitionWithComment)
	ctx.Step(`^the declaration history should list "([^"]*)"$`, steps.historyShouldList)
}

type workflowSteps struct {
	tc TestContext
}

func declarationBody(child string) map[string]any {
	first, last, _ := strings.Cut(child, " ")
	return map[string]any{
		"childFirstName": first,
		"childLastName":  last,
		"childGender":    "F",
		"birthDate":      time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
		"birthPlace":     "Dakar",
		"fatherName":     "Ousmane " + last,
		"motherName":     "Aminata Sow",
	}
}

func (s *workflowSteps) submitDeclaration(ctx context.Context, child string) error {
	if err := s.tc.POST("/birth-declarations", "citizen", declarationBody(child)); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	declarationID, err := s.tc.GetResponseField("data.id")
	if err != nil {
		return err
	}
	s.tc.Remember("declaration.id", fmt.Sprint(declarationID))
	return nil
}

func (s *workflowSteps) submitDeclarationWithout(ctx context.Context, field string) error {
	body := declarationBody("Fatou Ndiaye")
	delete(body, field)
	return s.tc.POST("/birth-declarations", "citizen", body)
}

func (s *workflowSteps) readDeclaration(ctx context.Context, actor string) error {
	return s.tc.GET("/birth-declarations/"+s.tc.Recall("declaration.id"), actor)
}

func (s *workflowSteps) transition(ctx context.Context, actor, status string) error {
	return s.tc.PATCH("/agent/birth-declarations/"+s.tc.Recall("declaration.id")+"/status", actor,
		map[string]string{"status": status})
}

func (s *workflowSteps) transitionWithComment(ctx context.Context, actor, status, comment string) error {
	return s.tc.PATCH("/agent/birth-declarations/"+s.tc.Recall("declaration.id")+"/status", actor,
		map[string]string{"status": status, "comment": comment})
}

// historyShouldList polls briefly: history is written asynchronously.
func (s *workflowSteps) historyShouldList(ctx context.Context, actions string) error {
	want := strings.Split(actions, ",")
	path := "/agent/requests/" + s.tc.Recall("declaration.id") + "/history"
	var got []string
	for range 20 {
		if err := s.tc.GET(path, "agent"); err != nil {
			return err
		}
		data, err := s.tc.GetResponseField("data")
		if err != nil {
			return err
		}
		got = got[:0]
		entries, _ := data.([]any)
		for _, e := range entries {
			if entry, ok := e.(map[string]any); ok {
				got = append(got, fmt.Sprint(entry["action"]))
			}
		}
		if strings.Join(got, ",") == strings.Join(want, ",") {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("expected history %v, got %v", want, got)
}
