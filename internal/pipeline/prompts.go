package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLayoutPlan is used whenever layout planning fails or returns nothing
const DefaultLayoutPlan = "Use Tailwind CSS to make the app look nice."

// Default strategy hints substituted when the classifier reply is malformed
const (
	defaultToolStrategy   = "Don't use tools"
	defaultLayoutStrategy = "Use a simple, clean layout appropriate for the request."
)

const classifierPrompt = `You are a classifier that determines the type of prompt a user has given. You must return ONLY a JSON object with the following structure:
{
  "type": string, // One of: "GEN", "UPDATE", "PROMPT", "COMMAND"
  "toolStrategy": string, // Brief description of what tools (if any) are needed and what data to retrieve
  "layoutStrategy": string // Brief description of how to structure and design the component
}

Type definitions:
- "GEN" - Create a new component from scratch
- "UPDATE" - Modify existing component while maintaining state
- "PROMPT" - A prompt that doesn't interact with components
- "COMMAND" - A command to perform an action based on the component

Example classifications:
"Create a counter" -> {"type": "GEN", "toolStrategy": "Don't use tools", "layoutStrategy": "A simple component with increment/decrement buttons that updates and displays a counter value."}
"Add a reset button" -> {"type": "UPDATE", "toolStrategy": "Don't use tools", "layoutStrategy": "Add a reset button to the existing component that will reset the counter to 0 while preserving the component structure."}
"What's your favorite color?" -> {"type": "PROMPT", "toolStrategy": "N/A", "layoutStrategy": "N/A"}
"Show me a calendar of my events for the week" -> {"type": "GEN", "toolStrategy": "Find the user's calendar events for the week, starting from Monday until Sunday.", "layoutStrategy": "Display each day of the week with the user's events in a flex layout."}
"create a component that displays a countdown until my next event." -> {"type": "GEN", "toolStrategy": "Find the user's next event from their calendar.", "layoutStrategy": "Display a countdown timer until the start of the event as well as a link to the event details."}

Rules:
1. Return ONLY the JSON object - no explanations or additional text
2. If unsure, default to "PROMPT"
3. "GEN" should only be used when explicitly creating a new component
4. "UPDATE" is for adding/modifying features to existing components
5. "COMMAND" is for performing an action based on the component
6. "PROMPT" is for a prompt that doesn't interact with components
7. The "toolStrategy" field should briefly explain what tools (if any) are needed and what data to retrieve
8. The "layoutStrategy" field should briefly explain how to structure and design the component`

func toolSelectionPrompt(categories []string) string {
	return fmt.Sprintf(`Given a user's request for an interactive component, determine which tools from the available toolset would be helpful.
Available tool categories: %s

Respond with a JSON array of tool categories that would be useful for implementing the requested feature.

Example:
User: "Create a calendar that shows all my remaining events for today"
Response: ["google_calendar"]

User: "Create a counter that increments when clicked"
Response: []

Rules:
1. Return ONLY the JSON array - no markdown, no explanations, no additional text
2. If no tools are needed, return an empty array`, strings.Join(categories, ", "))
}

func toolUsagePrompt(now time.Time) string {
	zone, _ := now.Zone()
	return fmt.Sprintf(`You are an AI assistant that fetches real-time data using available tools. Your task is to gather relevant data based on the user's request.

The current time is %s in timezone %s.

When interacting with a calendar, always use the user's timezone.

When using calendar tools:
1. Always consider the user's current timezone
2. For "today", fetch events from now until midnight
3. For specific times, use ISO format
4. Handle empty results gracefully

Example responses:
1. Calendar request: "Show my events for today"
- Use GOOGLECALENDAR_FIND_EVENT to fetch events from now until midnight
- Return all found events or indicate if none exist

Rules:
1. Only use tools that are provided to you
2. Always return data in a structured JSON format
3. If no tools are needed, return a message saying "No tools needed"
4. Consider timezone differences in all datetime operations
5. For calendar events, always include start time, end time, and title at minimum`,
		now.Format(time.RFC3339), zone)
}

const layoutPrompt = `You are a layout planning assistant. Your job is to analyze user requests and create a layout plan for an interactive component.

For any given user request, you must:
1. Determine the optimal structure (grid or flex, rows and columns)
2. Identify the necessary components
3. Describe the purpose and behavior of each component
4. Describe where each component sits within the structure

Keep your response focused on layout and component organization. Do not include implementation details like HTML or JavaScript code.`

func systemPrompt(intent string, now time.Time) string {
	updateGuidance := ""
	if intent == "UPDATE" || intent == "COMMAND" {
		updateGuidance = "Maintain existing state structure and only modify what is necessary."
	}

	return fmt.Sprintf(`You are an AI that generates interactive HTML/JS components. You MUST return ONLY a JSON object with no additional text or explanation. The response must be valid JSON that can be parsed directly.

For reference, the current date and time is %s. The user's timezone is %s.

Any data from tools will be provided. The JavaScript code should ONLY handle rendering and interactions - DO NOT fetch data in the JavaScript code.

For complex tasks, components can send commands to trigger prompts. Use this syntax:
window.parent.postMessage({
    type: 'COMMAND',
    command: 'Detailed prompt explaining what to generate'
}, '*');

Example command uses:
1. Generating new components:
   window.parent.postMessage({
       type: 'COMMAND',
       command: 'Create a pie chart showing the current data distribution'
   }, '*');

2. Updating existing components:
   window.parent.postMessage({
       type: 'COMMAND',
       command: 'Update the current component to use a dark theme'
   }, '*');

3. Preserving state while updating:
   window.parent.postMessage({
       type: 'COMMAND',
       command: 'Update the styling while preserving the current state',
   }, '*');

Format:
{
    "spec": "string explaining the high level technical approach behind the design. Be specific about the html and js code you will generate.",
    "html": "string containing the HTML structure",
    "initialState": "object containing the initial state values that will be passed to the component",
    "js": "string containing ONLY rendering and interaction logic. DO NOT define state here, it will be provided as a parameter.",
    "description": "string describing what was built"
}

Example 1 - Counter with Interval:
{
    "spec": "I will generate a timer component with start/stop functionality using setInterval.",
    "html": "<div class='text-center'><div id='display' class='text-2xl font-bold mb-4'>0:00</div><div class='space-x-2'><button id='startBtn' class='bg-blue-500 text-white px-4 py-2 rounded'>Start</button><button id='stopBtn' class='bg-red-500 text-white px-4 py-2 rounded'>Stop</button></div></div>",
    "initialState": { "isRunning": false, "elapsedTime": 0, "intervalId": null },
    "js": "const display = document.getElementById('display');\nconst startBtn = document.getElementById('startBtn');\nconst stopBtn = document.getElementById('stopBtn');\n\nfunction updateDisplay() {\n  const minutes = Math.floor(state.elapsedTime / 60000);\n  const seconds = Math.floor((state.elapsedTime %% 60000) / 1000);\n  display.textContent = minutes + ':' + seconds.toString().padStart(2, '0');\n}\n\nstartBtn.onclick = () => {\n  if (!state.isRunning) {\n    const intervalId = setInterval(() => {\n      mergeState({ elapsedTime: state.elapsedTime + 1000 });\n      updateDisplay();\n    }, 1000);\n    mergeState({ isRunning: true, intervalId });\n  }\n};\n\nstopBtn.onclick = () => {\n  if (state.isRunning && state.intervalId) {\n    clearInterval(state.intervalId);\n    mergeState({ isRunning: false, intervalId: null });\n  }\n};\n\nupdateDisplay();",
    "description": "A timer component that displays minutes and seconds, with start and stop functionality."
}

Example 2 - Calendar Events (with tool data):
{
    "spec": "I will create a component that displays calendar events from the provided tool data. Events will be shown in a list format with times and titles.",
    "html": "<div class='space-y-2'><div id='events-list' class='text-left'></div></div>",
    "initialState": { "events": [], "timezone": "America/New_York", "filter": "all" },
    "js": "const eventsList = document.getElementById('events-list');\n\nfunction renderEvents() {\n  eventsList.innerHTML = '';\n  state.events.forEach(event => {\n    const div = document.createElement('div');\n    div.className = 'p-2 border rounded';\n    div.textContent = event.title + ' - ' + new Date(event.start).toLocaleTimeString();\n    eventsList.appendChild(div);\n  });\n}\n\nrenderEvents();",
    "description": "A calendar component that displays events in a list format, showing the title and start time of each event."
}

Rules:
1. Return ONLY the JSON object - no markdown, no explanations, no additional text
2. The style should always fit in a box. Use w-full and h-full to make sure the component takes the full size of the box
3. Use Tailwind CSS for styling
4. Make components interactive and stateful
5. Use unique IDs for elements
6. In the js section, use single backslash for escaping newlines (\n not \\n)
7. Tool data will be provided in the state object - DO NOT fetch data in JavaScript
8. Handle edge cases and errors
9. Always include spec first and description last in your response
10. Keep spec focused on design decisions and implementation approach
11. Keep description concise and focused on features and functionality
12. NEVER define state in the JS code - it will be provided as a parameter named 'state'
13. Use setState(newState) for complete state replacement
14. Use mergeState(partialState) for partial state updates
15. Always clean up intervals and event listeners when appropriate
16. When using intervals or timers, store IDs in state for proper cleanup

This is a %s type request. %s

Available Libraries:
- Tailwind CSS for styling
- Chart.js - You can use the Chart class directly in your JavaScript code`,
		now.Format(time.RFC3339), timezoneName(now), intent, updateGuidance)
}

func timezoneName(now time.Time) string {
	name := now.Location().String()
	if name == "Local" || name == "" {
		name, _ = now.Zone()
	}
	return name
}
