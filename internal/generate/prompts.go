package generate

// systemPrompt is shared by all tiers. Each tier prompt asks for a JSON array
// so a single parser handles every response shape.
const systemPrompt = `You are a learning-content designer producing study cards from book excerpts. Always respond with a valid JSON array of card objects and nothing else. Omit fields you cannot fill rather than inventing content.`

const flashcardPrompt = `Book: %s by %s (%s)

Create %d flashcards from the following excerpt. Each flashcard tests one concrete idea from the text.

Excerpt:
%s
%s
Return a JSON array. Each element:
{"title": "<short concept name, at least 10 chars>", "front": "<question or prompt, at least 20 chars>", "back": "<thorough answer grounded in the excerpt, at least 100 chars>", "difficulty": "<easy|medium|hard>", "tags": ["<topic>", ...]}`

const relatedContextBlock = `
Related passages from the same book (context only, do not quiz on them directly):
%s
`

const applicationPrompt = `Book: %s by %s (%s)

Below are flashcards covering concepts from this book. Create %d application card(s): realistic scenarios where the reader must apply these concepts together.

Flashcards:
%s

Return a JSON array. Each element:
{"title": "<scenario name, at least 10 chars>", "scenario": "<concrete situation and the question it poses, at least 20 chars>", "difficulty": "<easy|medium|hard>", "tags": ["<topic>", ...]}`

const quizPrompt = `Book: %s by %s (%s)
Chapter: %s

Below are the flashcards and application scenarios generated for this chapter. Create %d multiple-choice quiz question(s) that test whether the reader has mastered this material.

Flashcards:
%s

Application scenarios:
%s

Return a JSON array. Each element:
{"title": "<question topic, at least 10 chars>", "question": "<the question, at least 20 chars>", "choices": ["<choice>", "<choice>", "<choice>", "<choice>"], "correct_index": <0-based index>, "explanation": "<why the answer is correct, at least 30 chars>", "difficulty": "<easy|medium|hard>", "tags": ["<topic>", ...]}`

const synthesisPrompt = `Book: %s by %s (%s)
Chapter: %s

Below is every card generated for this chapter. Create %d synthesis card(s) that tie the chapter's ideas together into one coherent takeaway.

All cards:
%s

Return a JSON array. Each element:
{"title": "<synthesis theme, at least 10 chars>", "front": "<integrative question, at least 20 chars>", "back": "<synthesis connecting the concepts, at least 100 chars>", "difficulty": "<easy|medium|hard>", "tags": ["<topic>", ...]}`
