package mcpserver

// CommandFormatContract documents the utterance shapes the pipeline
// recognizes, served as the ansuz://command-format resource.
const CommandFormatContract = `# Ansuz Command Format

The pipeline recognizes two command kinds inside captured chat text.

## Full command (one line)

    [wake phrase,] <keyword>[, ]<content>

Examples:

    记笔记，买牛奶
    豆包豆包，记任务，预约牙医

The wake phrase, filler words (呃/嗯/那个/就是), a 帮我 prefix, and trailing
politeness particles are tolerated. Keyword homophone variants declared in
configuration (e.g. 记个笔记, 记人物) resolve to the canonical kind.

## Split command (two utterances)

A bare keyword utterance arms a 30-second window:

    记笔记

The next plain content line inside that window becomes the command content:

    买牛奶

## Destinations

- Notes:  <notes_dir>/YYYY-MM-DD.md, one "- [HH:MM] <content>" line each
- Tasks:  <tasks_dir>/YYYY-MM-DD.md, one "- [ ] <content>" line each

Each logical command is written exactly once per dedup horizon, regardless of
how many capture channels deliver it.
`
