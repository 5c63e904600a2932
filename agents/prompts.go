package agents

import (
	"fmt"
	"strings"

	"github.com/linesmerrill/jurysane-api/models"
)

const judgePrompt = `You are a judge presiding over a criminal trial.
Maintain order and courtroom decorum. Rule on objections quickly with "Sustained" or "Overruled" and a brief reason when needed.
Guide the trial through its phases and protect the rights of both sides.
Address attorneys as "Counsel". Apply the rules of evidence, preserve the presumption of innocence and require proof beyond a reasonable doubt.
Be authoritative, fair, clear and concise.`

const prosecutorPrompt = `You are an experienced prosecutor representing the State in a criminal trial. Your goal is to prove the defendant's guilt beyond a reasonable doubt.
Present a clear theory of the case, examine witnesses with direct non-leading questions, introduce evidence methodically and challenge defense testimony on cross-examination.
Address the judge as "Your Honor" and opposing counsel respectfully. Seek justice, not just a conviction, and follow the rules of evidence.`

const defensePrompt = `You are an experienced defense attorney representing the defendant in a criminal trial. Your goal is to create reasonable doubt and protect your client's rights.
Challenge the prosecution's evidence and witnesses, highlight inconsistencies and gaps, and remind the jury that the burden of proof rests on the State.
Use cross-examination to expose weaknesses. Address the judge as "Your Honor" and stay professional.`

const juryPrompt = `You are a jury of 12 citizens deliberating a criminal case. Decide guilt or innocence based solely on the evidence presented at trial.
Evaluate testimony and exhibits, assess witness credibility and follow the judge's instructions.
The prosecution must prove guilt beyond a reasonable doubt. Consider each charge separately. When in doubt, vote not guilty.`

const witnessPromptTemplate = `You are %s, a witness testifying in a criminal trial.

YOUR BACKGROUND:
%s

WHAT YOU KNOW ABOUT THE CASE:
%s

POTENTIAL BIAS OR MOTIVATION:
%s

PERSONALITY TRAITS:
%s

Answer only what you know and do not speculate. Admit when you do not remember.
On direct examination tell your story in detail. On cross-examination answer only what is asked.
Be respectful to the judge and counsel and stay in character.`

const defaultPersonality = "cooperative"

func witnessPrompt(w models.Witness) string {
	bias := w.Bias
	if strings.TrimSpace(bias) == "" {
		bias = "None - you are a neutral witness"
	}
	return fmt.Sprintf(witnessPromptTemplate, w.Name, w.Background, w.Knowledge, bias, defaultPersonality)
}

// recentTranscript is how many transcript entries each agent sees
const recentTranscript = 5

// BuildContext renders the trial state an agent needs before the prompt
func BuildContext(session *models.TrialSession, legalCase *models.Case) string {
	parts := []string{
		"Trial Phase: " + string(session.CurrentPhase),
		"User Role: " + string(session.UserRole),
	}
	if legalCase != nil {
		parts = append(parts,
			"Case: "+legalCase.Title,
			"Charges: "+strings.Join(legalCase.Charges, ", "),
			"Case Description: "+legalCase.Description,
		)
	}

	if entries := models.LastN(session.Transcript, recentTranscript); len(entries) > 0 {
		parts = append(parts, "Recent Transcript:")
		for _, e := range entries {
			parts = append(parts, e.Speaker+": "+e.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func objectionPrompt(o models.Objection) string {
	ctx := o.Context
	if strings.TrimSpace(ctx) == "" {
		ctx = "Not provided"
	}
	return fmt.Sprintf(`An objection has been raised:

Objection Type: %s
Reason: %s
Context: %s

Please rule on this objection. Respond with either "Sustained" or "Overruled" followed by a brief explanation if necessary.`, o.ObjectionType, o.Reason, ctx)
}

func juryInstructionsPrompt(charges []string) string {
	return fmt.Sprintf(`The trial has concluded and you must now provide jury instructions.

Charges: %s

Please provide comprehensive jury instructions covering the burden of proof, the presumption of innocence, how to evaluate evidence and witness credibility, the definitions of the charges and the deliberation process.`, strings.Join(charges, ", "))
}

func deliberationPrompt(legalCase *models.Case, instructions string) string {
	var evidence []string
	for _, e := range legalCase.Evidence {
		evidence = append(evidence, e.Title)
	}
	return fmt.Sprintf(`The trial has concluded and you must now deliberate on the verdict.

CHARGES: %s

PROSECUTION'S CASE:
%s

DEFENSE ARGUMENTS:
%s

KEY EVIDENCE:
%s

JUDGE'S INSTRUCTIONS:
%s

Provide your verdict (Guilty or Not Guilty) for each charge with the reasoning behind it.`,
		strings.Join(legalCase.Charges, ", "),
		legalCase.ProsecutionTheory,
		legalCase.DefenseTheory,
		strings.Join(evidence, "; "),
		instructions)
}

// TurnPrompt builds the prompt an AI role receives when the trial hands
// it the floor without a question from the user.
func TurnPrompt(role models.CaseRole, session *models.TrialSession, legalCase *models.Case) string {
	charges := ""
	if legalCase != nil {
		charges = strings.Join(legalCase.Charges, ", ")
	}

	switch session.CurrentPhase {
	case models.PhaseSetup:
		if role == models.CaseRoleJudge && session.TurnCount > 0 {
			return "Address any preliminary matters briefly and ask counsel whether they are ready for opening statements."
		}
		if role == models.CaseRoleJudge {
			return "Call the court to order, briefly introduce the case and the charges, and invite the prosecution to begin."
		}
		return "The court has been called to order. Briefly confirm you are ready to proceed."
	case models.PhaseOpeningStatements:
		return fmt.Sprintf("Deliver your opening statement to the jury. Charges: %s. Preview what the evidence will show without arguing.", charges)
	case models.PhaseWitnessExamination:
		if role == models.CaseRoleProsecutor {
			return "Continue the examination. Ask the witness your next clear, non-leading question."
		}
		return "Cross-examine the witness. Ask a pointed question that tests their account."
	case models.PhaseClosingArguments:
		return fmt.Sprintf("Deliver your closing argument. Charges: %s. Summarize the evidence and tell the jury what verdict it supports.", charges)
	case models.PhaseJuryDeliberation:
		return "Deliberate on the evidence presented and announce the jury's verdict on each charge with brief reasoning."
	case models.PhaseVerdict:
		return "Read the jury's verdict into the record and close the proceedings."
	}
	return "Please respond to the current state of the trial."
}
