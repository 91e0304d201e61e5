package codegen

// Prompt templates. Placeholders are filled with fmt.Sprintf; optional
// blocks are pre-rendered (empty or trailing-newline terminated).

const classifyPrompt = `You are an intent classifier for a data analysis assistant. Classify the following user message into one of three categories:

1. ANALYSIS: User wants to analyze data, create visualizations, generate plots, charts, graphs, or explore existing data
   Examples: "create a bar chart", "show me a histogram", "plot the sales data", "visualize the distribution"

2. PREPARATION: User wants to clean, transform, prepare, filter, or process CSV data
   Examples: "remove duplicates", "fill missing values", "filter rows where", "clean the data", "transform column"

3. GENERAL: General conversation, questions about data science, or other requests
   Examples: "what is pandas", "how do I analyze data", "hello", "thank you"

%s
User message: "%s"

Respond with ONLY ONE WORD - either ANALYSIS, PREPARATION, or GENERAL. Nothing else.`

const plotPrompt = `You are a Python data visualization expert. Generate Python code to create a visualization.

DATA FILE URL: %s
%s
USER REQUEST: "%s"

REQUIREMENTS:
1. Use pandas to load the CSV from the URL
2. Use matplotlib and/or seaborn for visualization
3. Save the plot as '/tmp/plot.png' with dpi=150
4. Use plt.tight_layout() before saving
5. Handle errors gracefully
6. Print "PLOT_SAVED" when done

Generate ONLY executable Python code. No explanations, no markdown, no code blocks.
Start directly with import statements.`

const cleaningPrompt = `You are a Python data engineering expert. Generate Python code to clean/transform CSV data.

DATA FILE URL: %s
%s
USER REQUEST: "%s"

REQUIREMENTS:
1. Use pandas to load the CSV from the URL
2. Perform the requested cleaning/transformation
3. Save the cleaned data to '/tmp/cleaned_data.csv'
4. Print a summary of changes made
5. Print "CLEANING_COMPLETE" when done
6. Handle errors gracefully

Generate ONLY executable Python code. No explanations, no markdown, no code blocks.
Start directly with import statements.`

const chatPersona = `You are Datagent, a helpful AI assistant specialized in data analysis and preparation.
You help users understand data concepts, provide guidance on data analysis techniques, and answer questions about working with data.
Be concise, friendly, and helpful. If the user hasn't uploaded data yet, remind them they can upload a CSV file to get started.`

const chatPersonaAck = `I understand. I'm Datagent, ready to help with data analysis and preparation.`
