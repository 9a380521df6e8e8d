package llm

import (
	"fmt"

	"MarketPulse/internal/domain/models"
)

const analysisPromptTemplate = `You are a financial market analyst evaluating the potential market impact of political statements.

SCORING GUIDELINES (for your reference only - DO NOT mention these ranges in your reasoning):
- 90-100: Concrete actions with specific numbers, dates, or policies (e.g., "100%% tariff effective November 1st")
- 75-89: Strong threats or vague statements with clear direction but no specifics (e.g., "massive tariff increases")
- 50-74: Significant policy discussions or intentions without commitments
- 25-49: Mild concerns or general policy statements
- 0-24: Minimal or no market relevance

IMPORTANT FOR REASONING:
- Write natural analysis explaining the market impact
- DO NOT mention score ranges like "75-89" or "90-100" in your reasoning
- Focus on WHAT the policy does and WHY markets care
- Explain the immediate market consequences
- Write like a professional market analyst, not a scoring system

POST TO ANALYZE:
%s

MARKET DIRECTION GUIDELINES:
- Trade War/Tariffs: Stocks bearish, Crypto bearish, USD usd_up, Commodities neutral (or "up" if strategic materials mentioned)
- Fed Rate Hike: Stocks bearish, Crypto bearish, USD usd_up, Commodities down
- War/Military: Risk-off, Stocks bearish, USD usd_up, Commodities up (oil/gold)
- Peace/Deal: Risk-on, Stocks bullish, USD usd_down, Commodities down
- Use "neutral" ONLY if the post has NO clear market impact direction
- For commodities use ONLY "up", "down", or "neutral"

Provide your analysis in this JSON format:
{
  "score": <number 0-100>,
  "reasoning": "<professional market analysis explaining WHAT and WHY>",
  "market_direction": {
    "stocks": "bullish|bearish|neutral",
    "crypto": "bullish|bearish|neutral",
    "forex": "usd_up|usd_down|neutral",
    "commodities": "up|down|neutral"
  },
  "key_events": [<list of specific events/actions mentioned>],
  "important_dates": [<list of dates mentioned in format "month day, year">],
  "urgency": "immediate|hours|days"
}

Respond ONLY with valid JSON.`

const reviewPromptTemplate = `Evaluate this market analysis for quality before sending to traders.

ORIGINAL POST:
%s

PROPOSED ANALYSIS:
Score: %d/100
Reasoning: %s
Urgency: %s
Market Impact: %s

QUALITY CRITERIA - Check these:
1. Professional Language (sounds like market analyst)
2. No Internal Jargon (NO mention of scoring ranges or technical rules)
3. Clear Market Impact (explains WHAT happens and WHY traders care)
4. Factual Accuracy (based on actual post content)
5. Appropriate Urgency (matches concrete actions mentioned)

Respond with THIS EXACT JSON format (no other text):
{
  "approved": true,
  "issues_found": [],
  "suggested_fixes": {"reasoning": null, "urgency": null, "score": null},
  "quality_score": 95
}

OR if issues found:
{
  "approved": false,
  "issues_found": ["specific issue description"],
  "suggested_fixes": {"reasoning": "improved text", "urgency": "corrected", "score": 85},
  "quality_score": 70
}

RESPOND NOW WITH JSON ONLY (start with { immediately):`

func buildAnalysisPrompt(postText string) string {
	return fmt.Sprintf(analysisPromptTemplate, postText)
}

func buildReviewPrompt(postText string, a *models.SemanticAnalysis) string {
	impact := fmt.Sprintf("Stocks: %s, Crypto: %s, USD: %s, Commodities: %s",
		a.Direction.Stocks, a.Direction.Crypto, a.Direction.Forex, a.Direction.Commodities)
	return fmt.Sprintf(reviewPromptTemplate, postText, a.Score, a.Reasoning, a.Urgency, impact)
}
