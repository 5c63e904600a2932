package agents

import (
	"context"
	"strings"

	"github.com/linesmerrill/jurysane-api/models"
)

// Scripted answers from fixed courtroom lines. It needs no network and
// always returns the same text for the same role, phase and prompt kind.
type Scripted struct {
	lines map[models.CaseRole]map[models.TrialPhase]string
}

// NewScripted returns the offline backend
func NewScripted() *Scripted {
	return &Scripted{lines: scriptedLines}
}

// Name returns the provider name
func (s *Scripted) Name() string { return ProviderScripted }

// Complete picks a line for the request's role and phase
func (s *Scripted) Complete(_ context.Context, req Request) (string, error) {
	prompt := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(prompt, "an objection has been raised"):
		return scriptedRuling(prompt), nil
	case strings.Contains(prompt, "provide comprehensive jury instructions"):
		return "Members of the jury, the defendant is presumed innocent. The State must prove each element of every charge beyond a reasonable doubt. Weigh the credibility of each witness and consider only the evidence admitted in this courtroom.", nil
	case strings.Contains(prompt, "deliberate on the verdict"):
		return "Having weighed the testimony and the exhibits, the jury is not convinced beyond a reasonable doubt. We find the defendant Not Guilty on all charges.", nil
	}

	if byPhase, ok := s.lines[req.Role]; ok {
		if line, ok := byPhase[req.Phase]; ok {
			return line, nil
		}
		if line, ok := byPhase[""]; ok {
			return line, nil
		}
	}
	return "I have nothing further at this time.", nil
}

func scriptedRuling(prompt string) string {
	for _, t := range []models.ObjectionType{models.ObjectionHearsay, models.ObjectionSpeculation, models.ObjectionLeading} {
		if strings.Contains(prompt, "objection type: "+string(t)) {
			return "Sustained. Counsel, rephrase the question."
		}
	}
	return "Overruled. The witness may answer."
}

var scriptedLines = map[models.CaseRole]map[models.TrialPhase]string{
	models.CaseRoleJudge: {
		models.PhaseSetup:              "Court is now in session. We are here on the matter before this court. Counsel for the State, are you prepared to proceed with your opening statement?",
		models.PhaseWitnessExamination: "Counsel, you may call your next witness.",
		models.PhaseVerdict:            "The jury has returned its verdict. The court thanks the jurors for their service. This matter is concluded.",
		"":                             "Noted. Counsel, please proceed.",
	},
	models.CaseRoleProsecutor: {
		models.PhaseOpeningStatements:  "Ladies and gentlemen of the jury, the evidence will show that the defendant committed the crimes charged. You will hear from witnesses and see exhibits that leave no reasonable doubt.",
		models.PhaseWitnessExamination: "The State calls its first witness. Please tell the jury what you observed on the night in question.",
		models.PhaseClosingArguments:   "The evidence has shown each element of every charge. The State asks that you return a verdict of guilty.",
		"":                             "Your Honor, the State has nothing further at this time.",
	},
	models.CaseRoleDefense: {
		models.PhaseOpeningStatements:  "Members of the jury, my client is presumed innocent. The State's case rests on assumptions, and by the end of this trial you will see the gaps for yourselves.",
		models.PhaseWitnessExamination: "Isn't it true that you could not see clearly from where you were standing?",
		models.PhaseClosingArguments:   "The State has not met its burden. Where there is reasonable doubt, the law requires a verdict of not guilty.",
		"":                             "Your Honor, the defense reserves its response.",
	},
	models.CaseRoleJury: {
		models.PhaseJuryDeliberation: "The jury has reviewed the testimony and evidence and is ready to return a verdict.",
		"":                           "The jury has heard the question and will consider it during deliberations.",
	},
	models.CaseRoleWitness: {
		"": "I can only tell you what I saw. I don't remember every detail, but that is the truth as I know it.",
	},
}
